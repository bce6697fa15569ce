package dynamo

// Config holds DynamoDB connection settings
type Config struct {
	TableName string
	Region    string
	// Endpoint overrides the AWS endpoint, e.g. for dynamodb-local
	Endpoint string
	// CreateTable creates the table on startup if it does not exist
	CreateTable bool
}

// DefaultConfig returns sensible defaults for DynamoDB configuration
func DefaultConfig() Config {
	return Config{
		TableName: "poisoned-glass",
		Region:    "us-east-1",
	}
}
