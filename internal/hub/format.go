package hub

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Trade size tier emojis.
const (
	EmojiSmall = "🐟" // amount < 10
	EmojiMid   = "🐬" // 10 <= amount < 100
	EmojiLarge = "🐋" // amount >= 100
)

var (
	tierMid   = decimal.NewFromInt(10)
	tierLarge = decimal.NewFromInt(100)
)

// TierEmoji returns the size-tier emoji for a trade amount.
func TierEmoji(amount decimal.Decimal) string {
	switch {
	case amount.LessThan(tierMid):
		return EmojiSmall
	case amount.LessThan(tierLarge):
		return EmojiMid
	default:
		return EmojiLarge
	}
}

// TruncateAddress shortens an address to first6…last4 for display. Inputs
// shorter than 10 characters are returned unchanged.
func TruncateAddress(address string) string {
	if len(address) < 10 {
		return address
	}
	return address[:6] + "…" + address[len(address)-4:]
}

// alertLine renders the human-readable broadcast line for a trade alert.
func alertLine(emoji, action string, amount decimal.Decimal, address string) string {
	verb := "bought"
	if action == "sell" {
		verb = "sold"
	}
	return fmt.Sprintf("%s %s %s %s", emoji, TruncateAddress(address), verb, amount.String())
}
