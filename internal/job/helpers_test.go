package job

import (
	"testing"

	"rispay/internal/config"
	"rispay/internal/model"
	"rispay/internal/testutil"
)

func testConfig() *config.Config {
	return &config.Config{
		Kafka: config.KafkaConfig{
			Topic: config.KafkaTopicConfig{
				BalanceChanged:       "rispay.balance_changed",
				TransactionCompleted: "rispay.transaction_completed",
			},
		},
		Jobs: config.JobsConfig{
			DayOfMonth:      1,
			InterestHour:    1,
			OutboxBatchSize: 100,
			MaxRetryCount:   2,
		},
	}
}

func newFixture(t *testing.T) (*testutil.Fixture, *model.User) {
	f := testutil.NewFixture(t)
	provider := f.User("prov", model.RoleProvider, "")
	return f, provider
}
