// -----------------------------------------------------------------------
// Variable catalog - the closed set of configuration variables garimpo
// recognizes. Unknown keys found in any source are ignored and logged once.
// -----------------------------------------------------------------------

package config

// Category groups variables for template generation and status reporting.
type Category string

const (
	CategoryDatabase    Category = "database"
	CategoryKeyValue    Category = "key_value"
	CategoryCredentials Category = "credentials"
	CategoryPaths       Category = "paths"
	CategoryScraper     Category = "scraper"
	CategoryApplication Category = "application"
	CategoryAPIKeys     Category = "api_keys"
)

// Variable declares one recognized configuration variable. Validate is an
// optional go-playground/validator tag applied to the resolved value.
type Variable struct {
	Name        string
	Required    bool
	Default     string
	Secret      bool
	Category    Category
	Description string
	Validate    string
}

// Catalog lists every recognized variable, grouped by category. Order is
// preserved in the generated .env.template.
var Catalog = []Variable{
	// database
	{Name: "DB_HOST", Required: true, Default: "localhost", Category: CategoryDatabase, Description: "PostgreSQL host"},
	{Name: "DB_PORT", Default: "5432", Category: CategoryDatabase, Description: "PostgreSQL port", Validate: "numeric"},
	{Name: "DB_NAME", Required: true, Default: "garimpo", Category: CategoryDatabase, Description: "PostgreSQL database name"},
	{Name: "DB_USER", Default: "garimpo", Category: CategoryDatabase, Description: "PostgreSQL user"},
	{Name: "DB_PASSWORD", Secret: true, Category: CategoryDatabase, Description: "PostgreSQL password"},
	{Name: "DB_SSLMODE", Default: "disable", Category: CategoryDatabase, Description: "PostgreSQL sslmode", Validate: "oneof=disable require verify-ca verify-full"},

	// key/value store
	{Name: "REDIS_HOST", Required: true, Default: "localhost", Category: CategoryKeyValue, Description: "Redis host"},
	{Name: "REDIS_PORT", Default: "6379", Category: CategoryKeyValue, Description: "Redis port", Validate: "numeric"},
	{Name: "REDIS_DB", Default: "0", Category: CategoryKeyValue, Description: "Redis logical database", Validate: "numeric"},
	{Name: "REDIS_PASSWORD", Secret: true, Category: CategoryKeyValue, Description: "Redis password"},
	{Name: "REDIS_DISABLED", Default: "false", Category: CategoryKeyValue, Description: "Use the in-memory store instead of Redis (development only)", Validate: "boolean"},

	// scraper credentials
	{Name: "FUNDAMENTEI_EMAIL", Category: CategoryCredentials, Description: "Fundamentei login email"},
	{Name: "FUNDAMENTEI_PASSWORD", Secret: true, Category: CategoryCredentials, Description: "Fundamentei login password"},

	// paths
	{Name: "COOKIES_DIR", Default: "./data/cookies", Category: CategoryPaths, Description: "Directory for per-scraper session cookie files"},
	{Name: "LOG_DIR", Default: "./logs", Category: CategoryPaths, Description: "Directory for log files"},
	{Name: "SCHEDULES_FILE", Default: "./schedules.yaml", Category: CategoryPaths, Description: "Schedules YAML file path"},

	// scraper behavior
	{Name: "SCRAPER_HEADLESS", Default: "true", Category: CategoryScraper, Description: "Run browser logins headless", Validate: "boolean"},
	{Name: "SCRAPER_TIMEOUT", Default: "30s", Category: CategoryScraper, Description: "Per-request network timeout"},
	{Name: "SCRAPER_BUDGET", Default: "60s", Category: CategoryScraper, Description: "Overall budget per scrape"},
	{Name: "SCRAPER_MAX_RETRIES", Default: "3", Category: CategoryScraper, Description: "Default retry attempts per scrape", Validate: "numeric"},
	{Name: "WORKER_CONCURRENCY", Default: "5", Category: CategoryScraper, Description: "Worker pool size", Validate: "numeric"},
	{Name: "RETENTION_DAYS", Default: "30", Category: CategoryScraper, Description: "Days to keep scraper results (0 disables cleanup)", Validate: "numeric"},

	// application
	{Name: "ENVIRONMENT", Default: "development", Category: CategoryApplication, Description: "Runtime environment", Validate: "oneof=development staging production"},
	{Name: "LOG_LEVEL", Default: "info", Category: CategoryApplication, Description: "Log level", Validate: "oneof=debug info warn error"},
	{Name: "LOG_OUTPUT", Default: "stdout,file", Category: CategoryApplication, Description: "Comma-separated log outputs (stdout, file)"},
	{Name: "PORT", Default: "8080", Category: CategoryApplication, Description: "Reserved for the API collaborator", Validate: "numeric"},

	// API keys
	{Name: "BRAPI_TOKEN", Secret: true, Category: CategoryAPIKeys, Description: "BRAPI API token"},
}

// catalogByName indexes the catalog for lookup.
var catalogByName = func() map[string]Variable {
	m := make(map[string]Variable, len(Catalog))
	for _, v := range Catalog {
		m[v.Name] = v
	}
	return m
}()

// Lookup returns the catalog entry for a variable name.
func Lookup(name string) (Variable, bool) {
	v, ok := catalogByName[name]
	return v, ok
}
