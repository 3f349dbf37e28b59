package config

import (
	"testing"
	"time"

	. "github.com/onsi/gomega"
)

func TestLoadDefaults(t *testing.T) {
	g := NewWithT(t)

	cfg := Load()

	g.Expect(cfg.HTTPAddr).To(Equal(":8081"))
	g.Expect(cfg.KafkaBrokers).To(Equal([]string{"kafka:9092"}))
	g.Expect(cfg.Policy.MinStartPriceCents).To(Equal(int64(1000)))
	g.Expect(cfg.Policy.MinBidUnitCents).To(Equal(int64(100)))
	g.Expect(cfg.Policy.ExtensionWindow).To(Equal(5 * time.Minute))
	g.Expect(cfg.Policy.ExtensionLength).To(Equal(3 * time.Minute))
	g.Expect(cfg.Policy.MaxRecoveryCount).To(Equal(3))
	g.Expect(cfg.Policy.BuyNowPaymentGrace).To(Equal(10 * time.Minute))
	g.Expect(cfg.Policy.AuctionWinPayGrace).To(Equal(24 * time.Hour))
}

func TestLoadOverrides(t *testing.T) {
	g := NewWithT(t)
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092 ,")
	t.Setenv("POLICY_MIN_START_PRICE_CENTS", "2500")
	t.Setenv("POLICY_EXTENSION_WINDOW", "90s")
	t.Setenv("POLICY_MAX_RECOVERY_COUNT", "5")

	cfg := Load()

	g.Expect(cfg.HTTPAddr).To(Equal(":9090"))
	g.Expect(cfg.KafkaBrokers).To(Equal([]string{"k1:9092", "k2:9092"}))
	g.Expect(cfg.Policy.MinStartPriceCents).To(Equal(int64(2500)))
	g.Expect(cfg.Policy.ExtensionWindow).To(Equal(90 * time.Second))
	g.Expect(cfg.Policy.MaxRecoveryCount).To(Equal(5))
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	g := NewWithT(t)
	t.Setenv("POLICY_MIN_START_PRICE_CENTS", "cheap")
	t.Setenv("POLICY_EXTENSION_WINDOW", "soon")
	t.Setenv("POLICY_MAX_RECOVERY_COUNT", "many")

	cfg := Load()

	g.Expect(cfg.Policy.MinStartPriceCents).To(Equal(int64(1000)))
	g.Expect(cfg.Policy.ExtensionWindow).To(Equal(5 * time.Minute))
	g.Expect(cfg.Policy.MaxRecoveryCount).To(Equal(3))
}
