// Package fixtures provides shared test data constants for the AskGrid
// core test suite.
//
// Using common constants for test identities and retrieval data prevents
// magic strings in tests and ensures consistency across packages.
package fixtures

// Standard identity values used in auth and service tests.
const (
	// TestSubject is the default subject claim for test identities.
	TestSubject = "user-abc-123"

	// AltSubject is an alternative subject for tests requiring two users.
	AltSubject = "user-def-456"

	// TestIssuer is the default issuer for test identities.
	TestIssuer = "https://auth.askgrid.test"

	// TestAudience is the default audience for test identities.
	TestAudience = "askgrid-core"

	// TestEmail is the default email claim for test identities.
	TestEmail = "operator@askgrid.test"
)

// Standard retrieval values used in chat pipeline tests.
const (
	// SessionID is the default chat session identifier for unit tests.
	SessionID = "session-001"

	// AltSessionID is an alternative session identifier for tests
	// requiring two sessions.
	AltSessionID = "session-002"

	// PassageID is the default passage identifier for retrieval tests.
	PassageID = "passage-001"

	// SourceRef is the default corpus object key cited by test passages.
	SourceRef = "handbook/balancing.md"

	// PassageText is the default passage body for retrieval tests.
	PassageText = "Balancing reserves are activated in merit order within each settlement period."

	// Question is the default user question for ask pipeline tests.
	Question = "How are balancing reserves activated?"
)

// Standard configuration values used in config loader tests.
const (
	// TestEnvPrefix is the default environment variable prefix for config tests.
	TestEnvPrefix = "TESTAPP"

	// TestConfigYAML is a minimal valid YAML configuration for tests.
	TestConfigYAML = `host: localhost
port: 8080
database: testdb
`

	// TestConfigJSON is a minimal valid JSON configuration for tests.
	TestConfigJSON = `{
  "host": "localhost",
  "port": 8080,
  "database": "testdb"
}`
)

// Standard database configuration values used in postgres client tests.
const (
	// TestDBHost is the default database host for test configurations.
	TestDBHost = "localhost"

	// TestDBPort is the default database port for test configurations.
	TestDBPort = 5432

	// TestDBName is the default database name for test configurations.
	TestDBName = "testdb"

	// TestDBUser is the default database user for test configurations.
	TestDBUser = "testuser"

	// TestDBPassword is the default database password for test configurations.
	// This is a deliberately weak value suitable only for unit tests.
	TestDBPassword = "testpass"
)
