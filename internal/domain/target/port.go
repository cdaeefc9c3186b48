package target

// Registry is the caller-owned view of targets and the ActiveSet.
type Registry interface {
	Target(id string) (Target, error)
	Targets() []Target
	ActiveIDs() []string
	Config() Config
}
