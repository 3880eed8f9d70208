// Package drama holds the artifacts that flow through a novel-to-video run
// (parsed chapters, script scenes, storyboard panels, designed characters)
// and the collaborator interfaces that produce them.
//
// Implementations live elsewhere: the novel package backs the parser and
// generators with an LLM, and Consistency is the pure character factory.
package drama
