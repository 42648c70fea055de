package database

// Config holds configuration for the database connection.
type Config struct {
	// Driver selects the dialect: mysql or sqlite.
	Driver string `mapstructure:"driver" default:"mysql"`
	// Host is the database host.
	Host string `mapstructure:"host" default:"localhost"`
	// Port is the database port.
	Port int `mapstructure:"port" default:"3306"`
	// User is the database user.
	User string `mapstructure:"user" default:"root"`
	// Password is the database password.
	Password string `mapstructure:"password" default:""`
	// Name is the database name. For sqlite it is the file path, or ":memory:".
	Name string `mapstructure:"name" default:"crm_sync"`
	// TimeoutSeconds bounds connection setup, reads, writes and the initial ping.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"30"`
	// AutoMigrate creates or updates the sync tables on startup.
	AutoMigrate bool `mapstructure:"auto_migrate" default:"true"`
}
