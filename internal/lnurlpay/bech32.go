package lnurlpay

import (
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

// lnurlBech32HRP is the fixed human-readable part LUD-01 specifies for a
// bech32-wrapped LNURL.
const lnurlBech32HRP = "lnurl"

// encodeLNURL wraps a plain https offer URL into the uppercase bech32
// "LNURL1..." form LUD-01 defines for QR-code and clipboard distribution, for wallets that
// discover the offer without first having it handed to them as a link.
func encodeLNURL(rawURL string) (string, error) {
	converted, err := bech32.ConvertBits([]byte(rawURL), 8, 5, true)
	if err != nil {
		return "", err
	}
	encoded, err := bech32.Encode(lnurlBech32HRP, converted)
	if err != nil {
		return "", err
	}
	return strings.ToUpper(encoded), nil
}
