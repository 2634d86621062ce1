package env

const (
	// Prefix is the prefix of every credsim environment variable.
	// Flags read their variable as Prefix_FLAG_NAME
	Prefix = "CREDSIM"

	// DBURL is the Postgres connection string variable
	DBURL = Prefix + "_DB_URL"
)
