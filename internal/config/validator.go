package config

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"wisegate/internal/constants"
)

// tableIdentity accepts "table" or "schema.table".
var tableIdentity = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// modeKinds maps each mode to the record kind its default table stores.
var modeKinds = map[string]string{
	constants.ModeDigitalIO:          constants.KindDigitalIO,
	constants.ModeSplitIOEnvironment: constants.KindMerged,
	constants.ModeTagValue:           constants.KindTagValue,
	constants.ModeRegisterReport:     constants.KindRegister,
	constants.ModeAuto:               constants.KindMerged,
}

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidTableIdentity(name string) bool {
	return tableIdentity.MatchString(name)
}

func ValidateStatic(cfg *Config) error {
	var errors []error

	if err := validateServer(cfg.Server); err != nil {
		errors = append(errors, err)
	}

	if err := validateBroker(cfg.Broker); err != nil {
		errors = append(errors, err)
	}

	if err := validateDatabase(cfg.Database); err != nil {
		errors = append(errors, err)
	}

	errors = append(errors, validateFamilies(cfg.Families)...)

	if err := validateDashboard(cfg.Dashboard, cfg.Families); err != nil {
		errors = append(errors, err)
	}

	if err := validateRealtime(cfg.Realtime); err != nil {
		errors = append(errors, err)
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errors)
	}

	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.ReadTimeout <= 0 {
		return &ValidationError{
			Field:   "server.read_timeout",
			Message: "read timeout must be positive",
		}
	}

	if cfg.WriteTimeout <= 0 {
		return &ValidationError{
			Field:   "server.write_timeout",
			Message: "write timeout must be positive",
		}
	}

	return nil
}

func validateBroker(cfg BrokerConfig) error {
	switch cfg.Type {
	case "":
		return &ValidationError{
			Field:   "broker.type",
			Message: "broker type is required",
		}
	case constants.BusMQTT:
		return validateMQTT(cfg.MQTT)
	case constants.BusKafka:
		return validateKafka(cfg.Kafka)
	default:
		return &ValidationError{
			Field:   "broker.type",
			Message: fmt.Sprintf("unknown broker type: %s (supported: mqtt, kafka)", cfg.Type),
		}
	}
}

func validateMQTT(cfg MQTTConfig) error {
	if cfg.URL == "" {
		return &ValidationError{
			Field:   "broker.mqtt.url",
			Message: "MQTT broker URL is required",
		}
	}

	if cfg.QoS > 2 {
		return &ValidationError{
			Field:   "broker.mqtt.qos",
			Message: fmt.Sprintf("qos must be 0, 1 or 2, got %d", cfg.QoS),
		}
	}

	if cfg.KeepAlive <= 0 {
		return &ValidationError{
			Field:   "broker.mqtt.keep_alive",
			Message: "keep alive must be positive",
		}
	}

	return nil
}

func validateKafka(cfg KafkaConfig) error {
	if len(cfg.Brokers) == 0 {
		return &ValidationError{
			Field:   "broker.kafka.brokers",
			Message: "at least one Kafka broker is required",
		}
	}

	for i, broker := range cfg.Brokers {
		if broker == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("broker.kafka.brokers[%d]", i),
				Message: "broker address cannot be empty",
			}
		}
	}

	if cfg.GroupID == "" {
		return &ValidationError{
			Field:   "broker.kafka.group_id",
			Message: "Kafka consumer group ID is required",
		}
	}

	if len(cfg.Topics) == 0 {
		return &ValidationError{
			Field:   "broker.kafka.topics",
			Message: "at least one Kafka topic is required",
		}
	}

	return nil
}

func validateDatabase(cfg DatabaseConfig) error {
	pg := cfg.Postgres
	if pg.Host == "" {
		return &ValidationError{
			Field:   "database.postgres.host",
			Message: "PostgreSQL host is required",
		}
	}

	if pg.Port < 1 || pg.Port > 65535 {
		return &ValidationError{
			Field:   "database.postgres.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", pg.Port),
		}
	}

	if pg.DBName == "" {
		return &ValidationError{
			Field:   "database.postgres.dbname",
			Message: "database name is required",
		}
	}

	if pg.Driver != constants.DriverPQ && pg.Driver != constants.DriverPgx {
		return &ValidationError{
			Field:   "database.postgres.driver",
			Message: fmt.Sprintf("unknown driver: %s (supported: postgres, pgx)", pg.Driver),
		}
	}

	if cfg.Redis.Host != "" && (cfg.Redis.Port < 1 || cfg.Redis.Port > 65535) {
		return &ValidationError{
			Field:   "database.redis.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Redis.Port),
		}
	}

	return nil
}

func validateFamilies(families []FamilyConfig) []error {
	var errors []error

	if len(families) == 0 {
		return []error{&ValidationError{
			Field:   "families",
			Message: "at least one device family is required",
		}}
	}

	seen := make(map[string]bool, len(families))
	for i, f := range families {
		prefix := fmt.Sprintf("families[%d]", i)

		if strings.TrimSpace(f.Name) == "" {
			errors = append(errors, &ValidationError{Field: prefix + ".name", Message: "name is required"})
		} else if seen[f.Name] {
			errors = append(errors, &ValidationError{Field: prefix + ".name", Message: fmt.Sprintf("duplicate family name: %s", f.Name)})
		}
		seen[f.Name] = true

		if _, ok := modeKinds[f.Mode]; !ok {
			errors = append(errors, &ValidationError{Field: prefix + ".mode", Message: fmt.Sprintf("unknown mode: %s", f.Mode)})
		}

		if len(f.Topics) == 0 {
			errors = append(errors, &ValidationError{Field: prefix + ".topics", Message: "at least one topic filter is required"})
		}
		for j, topic := range f.Topics {
			if topic == "" {
				errors = append(errors, &ValidationError{Field: fmt.Sprintf("%s.topics[%d]", prefix, j), Message: "topic filter cannot be empty"})
			}
		}

		if f.Table == "" && len(f.Tables) == 0 {
			errors = append(errors, &ValidationError{Field: prefix + ".table", Message: "table is required"})
		} else if f.Table != "" && !ValidTableIdentity(f.Table) {
			errors = append(errors, &ValidationError{Field: prefix + ".table", Message: fmt.Sprintf("invalid table identity: %q", f.Table)})
		}

		for kind, table := range f.Tables {
			if !ValidTableIdentity(table) {
				errors = append(errors, &ValidationError{Field: fmt.Sprintf("%s.tables.%s", prefix, kind), Message: fmt.Sprintf("invalid table identity: %q", table)})
			}
		}

		if f.ConnectionLogTable != "" && !ValidTableIdentity(f.ConnectionLogTable) {
			errors = append(errors, &ValidationError{Field: prefix + ".connection_log_table", Message: fmt.Sprintf("invalid table identity: %q", f.ConnectionLogTable)})
		}

		switch f.DeviceFrom {
		case constants.DeviceFromFamily, constants.DeviceFromTopic, constants.DeviceFromTopicLast:
		default:
			errors = append(errors, &ValidationError{Field: prefix + ".device_from", Message: fmt.Sprintf("unknown device source: %s", f.DeviceFrom)})
		}
	}

	return append(errors, validateTableKinds(families)...)
}

// validateTableKinds rejects a table identity configured for two record
// kinds; its column set can only match one of them.
func validateTableKinds(families []FamilyConfig) []error {
	var errors []error
	kinds := make(map[string]string)
	owners := make(map[string]string)

	check := func(i int, field, table, kind string) {
		if table == "" || kind == "" {
			return
		}
		if prev, ok := kinds[table]; ok && prev != kind {
			errors = append(errors, &ValidationError{
				Field:   fmt.Sprintf("families[%d].%s", i, field),
				Message: fmt.Sprintf("table %s stores %s records for %s, cannot also store %s records", table, prev, owners[table], kind),
			})
			return
		}
		kinds[table] = kind
		owners[table] = families[i].Name
	}

	for i, f := range families {
		check(i, "table", f.Table, modeKinds[f.Mode])
		check(i, "connection_log_table", f.ConnectionLogTable, constants.KindConnectionLog)
		kindNames := make([]string, 0, len(f.Tables))
		for kind := range f.Tables {
			kindNames = append(kindNames, kind)
		}
		sort.Strings(kindNames)
		for _, kind := range kindNames {
			check(i, "tables."+kind, f.Tables[kind], kind)
		}
	}
	return errors
}

func validateDashboard(cfg DashboardConfig, families []FamilyConfig) error {
	if cfg.Limit < 1 || cfg.Limit > constants.MaxQueryLimit {
		return &ValidationError{
			Field:   "dashboard.limit",
			Message: fmt.Sprintf("limit must be between 1 and %d, got %d", constants.MaxQueryLimit, cfg.Limit),
		}
	}

	if cfg.Family == "" {
		return nil
	}
	for _, f := range families {
		if f.Name == cfg.Family {
			return nil
		}
	}
	return &ValidationError{
		Field:   "dashboard.family",
		Message: fmt.Sprintf("unknown family: %s", cfg.Family),
	}
}

func validateRealtime(cfg RealtimeConfig) error {
	if cfg.RecordChannel == "" || cfg.LogChannel == "" {
		return &ValidationError{
			Field:   "realtime",
			Message: "record_channel and log_channel are required",
		}
	}

	if cfg.RecentSize < 0 {
		return &ValidationError{
			Field:   "realtime.recent_size",
			Message: "recent size must be non-negative",
		}
	}

	return nil
}
