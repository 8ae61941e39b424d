package config

type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `yaml:"level"`
	// Format is json or console
	Format string `yaml:"format"`
	// Output is stdout, stderr or file
	Output string `yaml:"output"`
	// FilePath is used when Output is file
	FilePath string `yaml:"file_path"`
	// Development enables caller info and colored console levels
	Development bool `yaml:"development"`
}
