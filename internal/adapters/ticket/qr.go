package ticket

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"

	"eventgate/internal/domain"
)

// codeBytes gives 80 bits of entropy per code, enough that a collision is a
// curiosity handled by the ledger's unique constraint rather than a hazard.
const codeBytes = 10

const codePrefix = "TKT-"

type qrIssuer struct {
	size int
}

// NewIssuer returns a TicketIssuer producing prefixed random codes and PNG QR
// artifacts encoded as base64.
func NewIssuer() domain.TicketIssuer {
	return &qrIssuer{size: 256}
}

func (i *qrIssuer) NewCode() (string, error) {
	buf := make([]byte, codeBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return codePrefix + hex.EncodeToString(buf), nil
}

// Issue renders the code into a PNG QR and returns it base64-encoded. The
// output depends only on the code, so reissuing yields an equivalent artifact.
func (i *qrIssuer) Issue(code string) (string, error) {
	png, err := qrcode.Encode(code, qrcode.Medium, i.size)
	if err != nil {
		return "", fmt.Errorf("encode qr: %w", err)
	}
	return base64.StdEncoding.EncodeToString(png), nil
}
