package drama

// Chapter is one chapter extracted from a manuscript.
type Chapter struct {
	Index   int    `json:"index"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Content string `json:"content,omitempty"`
}

// CharacterProfile is a character as described by the manuscript.
type CharacterProfile struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Role        string `json:"role,omitempty"`
}

// NovelParseResult is the output of parsing a manuscript.
type NovelParseResult struct {
	Title      string             `json:"title,omitempty"`
	Chapters   []Chapter          `json:"chapters"`
	Characters []CharacterProfile `json:"characters"`
}

// DialogueLine is a single spoken line in a scene.
type DialogueLine struct {
	Character string `json:"character"`
	Line      string `json:"line"`
	Emotion   string `json:"emotion,omitempty"`
}

// ScriptScene is one scene of the adapted script.
type ScriptScene struct {
	ID           string         `json:"id"`
	ChapterIndex int            `json:"chapter_index"`
	Title        string         `json:"title"`
	Location     string         `json:"location,omitempty"`
	Description  string         `json:"description"`
	Characters   []string       `json:"characters,omitempty"`
	Dialogue     []DialogueLine `json:"dialogue,omitempty"`
}

// Script is the scene-by-scene adaptation of the parsed manuscript.
type Script struct {
	Title  string        `json:"title,omitempty"`
	Scenes []ScriptScene `json:"scenes"`
}

// StoryboardPanel is a single shot within a scene.
type StoryboardPanel struct {
	SceneID     string   `json:"scene_id"`
	Index       int      `json:"index"`
	ShotType    string   `json:"shot_type,omitempty"`
	Description string   `json:"description"`
	Dialogue    string   `json:"dialogue,omitempty"`
	Characters  []string `json:"characters,omitempty"`
}

// Appearance captures the visual attributes kept consistent across renders.
type Appearance struct {
	Gender    string   `json:"gender"`
	Age       string   `json:"age"`
	HairStyle string   `json:"hair_style"`
	HairColor string   `json:"hair_color"`
	EyeColor  string   `json:"eye_color"`
	Clothing  string   `json:"clothing"`
	Features  []string `json:"features"`
}

// Voice captures the voice settings used by voiceover.
type Voice struct {
	Type    string `json:"type"`
	Pitch   string `json:"pitch"`
	Speed   string `json:"speed"`
	Emotion string `json:"emotion"`
}

// Character is a design-ready character with consistency attributes.
type Character struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	Role            string     `json:"role,omitempty"`
	Appearance      Appearance `json:"appearance"`
	Personality     []string   `json:"personality"`
	ReferenceImages []string   `json:"reference_images"`
	Voice           Voice      `json:"voice"`
}

// ArtifactRef is an opaque reference to media produced by a black-box stage
// (scene render, animation, voiceover, export).
type ArtifactRef struct {
	Kind  string `json:"kind"`
	URI   string `json:"uri"`
	Count int    `json:"count,omitempty"`
}
