package hub

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestTierEmoji(t *testing.T) {
	tests := []struct {
		amount string
		want   string
	}{
		{"0", EmojiSmall},
		{"5", EmojiSmall},
		{"9.999", EmojiSmall},
		{"10", EmojiMid},
		{"50", EmojiMid},
		{"99.999", EmojiMid},
		{"100", EmojiLarge},
		{"500", EmojiLarge},
		{"12345.67", EmojiLarge},
	}

	for _, tt := range tests {
		amount := decimal.RequireFromString(tt.amount)
		if got := TierEmoji(amount); got != tt.want {
			t.Errorf("TierEmoji(%s) = %s, want %s", tt.amount, got, tt.want)
		}
	}
}

func TestTruncateAddress(t *testing.T) {
	tests := []struct {
		address string
		want    string
	}{
		{"0x1234567890abcdef1234567890abcdef12345678", "0x1234…5678"},
		{"0123456789", "012345…6789"}, // shortest truncated input
		{"012345678", "012345678"},    // one below the threshold
		{"short", "short"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := TruncateAddress(tt.address); got != tt.want {
			t.Errorf("TruncateAddress(%q) = %q, want %q", tt.address, got, tt.want)
		}
	}
}

func TestAlertLine(t *testing.T) {
	addr := "0x1234567890abcdef1234567890abcdef12345678"

	buy := alertLine(EmojiMid, "buy", decimal.RequireFromString("42.5"), addr)
	if buy != "🐬 0x1234…5678 bought 42.5" {
		t.Errorf("buy line = %q", buy)
	}

	sell := alertLine(EmojiLarge, "sell", decimal.NewFromInt(250), addr)
	if sell != "🐋 0x1234…5678 sold 250" {
		t.Errorf("sell line = %q", sell)
	}
}
