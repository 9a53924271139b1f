package queue

type Config struct {
	// DBPath path of the sqlite file holding the queue
	DBPath string `mapstructure:"DBPath"`
}
