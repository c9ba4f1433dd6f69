package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/hadi77ir/go-docpager/pagination"
)

// MongoConfig locates the collection to paginate.
type MongoConfig struct {
	URI            string        `mapstructure:"uri" validate:"required"`
	Database       string        `mapstructure:"database" validate:"required"`
	Collection     string        `mapstructure:"collection" validate:"required"`
	ConnectTimeout time.Duration `mapstructure:"connectTimeout" validate:"gte=0"`
}

// SortConfig is the requested sort.
type SortConfig struct {
	Field string `mapstructure:"field"`
	Order string `mapstructure:"order"`
}

// LogConfig selects the log output.
type LogConfig struct {
	Format string `mapstructure:"format" validate:"oneof=text json"`
	Level  string `mapstructure:"level" validate:"oneof=none debug info warn error"`
}

// Config is the configuration of the find command.
type Config struct {
	Mongo MongoConfig `mapstructure:"mongo"`
	// Query and Projection are extended JSON documents.
	Query      string     `mapstructure:"query"`
	Projection string     `mapstructure:"projection"`
	Sort       SortConfig `mapstructure:"sort"`
	Limit      int        `mapstructure:"limit"`
	Cursor     string     `mapstructure:"cursor"`
	Direction  string     `mapstructure:"direction"`
	Collate    bool       `mapstructure:"collate"`
	Count      bool       `mapstructure:"count"`
	// AllowedFields, when set, confines filters, sorts and projections to
	// these fields and their descendants.
	AllowedFields []string  `mapstructure:"allowedFields"`
	Log           LogConfig `mapstructure:"log"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		Mongo: MongoConfig{
			URI:            "mongodb://localhost:27017",
			ConnectTimeout: 10 * time.Second,
		},
		Sort:      SortConfig{Field: "_id", Order: "asc"},
		Direction: string(pagination.DirectionAfter),
		Log: LogConfig{
			Format: "text",
			Level:  "info",
		},
	}
}

// bindFindFlags binds the cobra cmd flags to the equivalent config value being
// managed by viper.
func bindFindFlags(command *cobra.Command) {
	defaultConfig := DefaultConfig()
	flags := command.Flags()

	flags.String("mongo-uri", defaultConfig.Mongo.URI, "the connection uri of the MongoDB deployment")
	mustBindPFlag("mongo.uri", flags.Lookup("mongo-uri"))
	mustBindEnv("mongo.uri", "DOCPAGER_MONGO_URI")

	flags.String("database", defaultConfig.Mongo.Database, "the database holding the collection")
	mustBindPFlag("mongo.database", flags.Lookup("database"))
	mustBindEnv("mongo.database", "DOCPAGER_DATABASE", "DOCPAGER_MONGO_DATABASE")

	flags.String("collection", defaultConfig.Mongo.Collection, "the collection to paginate")
	mustBindPFlag("mongo.collection", flags.Lookup("collection"))
	mustBindEnv("mongo.collection", "DOCPAGER_COLLECTION", "DOCPAGER_MONGO_COLLECTION")

	flags.Duration("connect-timeout", defaultConfig.Mongo.ConnectTimeout, "how long to keep retrying the initial ping")
	mustBindPFlag("mongo.connectTimeout", flags.Lookup("connect-timeout"))
	mustBindEnv("mongo.connectTimeout", "DOCPAGER_CONNECT_TIMEOUT")

	flags.String("query", defaultConfig.Query, "the filter, as extended JSON")
	mustBindPFlag("query", flags.Lookup("query"))

	flags.String("projection", defaultConfig.Projection, "the projection, as extended JSON")
	mustBindPFlag("projection", flags.Lookup("projection"))

	flags.String("sort-field", defaultConfig.Sort.Field, "the field to sort on")
	mustBindPFlag("sort.field", flags.Lookup("sort-field"))
	mustBindEnv("sort.field", "DOCPAGER_SORT_FIELD")

	flags.String("sort-order", defaultConfig.Sort.Order, "asc, desc, 1 or -1")
	mustBindPFlag("sort.order", flags.Lookup("sort-order"))
	mustBindEnv("sort.order", "DOCPAGER_SORT_ORDER")

	flags.Int("limit", defaultConfig.Limit, "the page size (0 selects the default)")
	mustBindPFlag("limit", flags.Lookup("limit"))

	flags.String("cursor", defaultConfig.Cursor, "the cursor to read from")
	mustBindPFlag("cursor", flags.Lookup("cursor"))

	flags.String("direction", defaultConfig.Direction, "AFTER or BEFORE the cursor")
	mustBindPFlag("direction", flags.Lookup("direction"))

	flags.Bool("collate", defaultConfig.Collate, "sort strings with the default collation")
	mustBindPFlag("collate", flags.Lookup("collate"))

	flags.Bool("count", defaultConfig.Count, "also report the total number of matching documents")
	mustBindPFlag("count", flags.Lookup("count"))

	flags.StringSlice("allowed-fields", defaultConfig.AllowedFields, "the fields queries may reference (empty allows all)")
	mustBindPFlag("allowedFields", flags.Lookup("allowed-fields"))
	mustBindEnv("allowedFields", "DOCPAGER_ALLOWED_FIELDS")

	flags.String("log-format", defaultConfig.Log.Format, "the log format to output logs in")
	mustBindPFlag("log.format", flags.Lookup("log-format"))
	mustBindEnv("log.format", "DOCPAGER_LOG_FORMAT")

	flags.String("log-level", defaultConfig.Log.Level, "the log level to use")
	mustBindPFlag("log.level", flags.Lookup("log-level"))
	mustBindEnv("log.level", "DOCPAGER_LOG_LEVEL")
}

// ReadConfig reads the find configuration from viper and validates it.
func ReadConfig() (*Config, error) {
	cfg := DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}
	if err := cfg.Verify(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var configValidator = validator.New(validator.WithRequiredStructEnabled())

// Verify checks the connection and logging settings. Request parameters are
// checked by the paginator.
func (c *Config) Verify() error {
	err := configValidator.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("invalid configuration: %s failed on the '%s' rule", fe.Namespace(), fe.Tag())
	}
	return fmt.Errorf("invalid configuration: %w", err)
}

// Request converts the configuration into a page request.
func (c *Config) Request() (pagination.Request, error) {
	q, err := parseDocument("query", c.Query)
	if err != nil {
		return pagination.Request{}, err
	}
	projection, err := parseDocument("projection", c.Projection)
	if err != nil {
		return pagination.Request{}, err
	}
	return pagination.Request{
		Query:      q,
		Sort:       pagination.SortParams{Field: c.Sort.Field, Order: c.Sort.Order},
		Limit:      c.Limit,
		Cursor:     c.Cursor,
		Direction:  pagination.Direction(c.Direction),
		Projection: projection,
		Collate:    c.Collate,
	}, nil
}

// parseDocument reads an extended JSON document. Blank input is nil.
func parseDocument(name, s string) (bson.M, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var doc bson.M
	if err := bson.UnmarshalExtJSON([]byte(s), false, &doc); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", name, err)
	}
	return doc, nil
}
