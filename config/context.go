package config

// Context carries the loaded configuration and the registered modules
// through the command tree.
type Context struct {
	Modules  []ModuleI
	Registry *Registry
	Config   *Config
	HomePath string
	Debug    bool
}
