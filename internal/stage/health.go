package stage

// Health is the readiness of a stage runner or generation backend.
type Health struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// Healthy returns a ready record for name.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy returns a not-ready record explaining why.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Detail: detail}
}

func (h Health) String() string {
	switch {
	case h.Ready:
		return h.Name + ": ready"
	case h.Detail == "":
		return h.Name + ": not ready"
	default:
		return h.Name + ": " + h.Detail
	}
}
