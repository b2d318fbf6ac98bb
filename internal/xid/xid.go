package xid

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

func New(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}

// Ticket returns a human-readable ticket number in the CUST-##### format
// printed on customer receipts.
func Ticket() string {
	n, err := rand.Int(rand.Reader, big.NewInt(90000))
	if err != nil {
		return fmt.Sprintf("CUST-%d", time.Now().UnixNano()%100000)
	}
	return fmt.Sprintf("CUST-%05d", n.Int64()+10000)
}
