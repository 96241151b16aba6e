package idgen

import (
	"fmt"
	"sync"
	"time"
)

// Snowflake-style generator for business numbers: 41-bit millisecond
// timestamp, 10-bit worker ID, 12-bit per-millisecond sequence. Numbers
// are globally unique and trend upward, which keeps the unique indexes
// on transaction_no / entry_no / withdrawal_no cheap.

const (
	epoch          = int64(1704067200000) // 2024-01-01 00:00:00 UTC
	workerIDBits   = 10
	sequenceBits   = 12
	maxWorkerID    = -1 ^ (-1 << workerIDBits)
	maxSequence    = -1 ^ (-1 << sequenceBits)
	workerIDShift  = sequenceBits
	timestampShift = sequenceBits + workerIDBits
)

type Snowflake struct {
	mu        sync.Mutex
	timestamp int64
	workerID  int64
	sequence  int64
}

var (
	defaultGenerator *Snowflake
	once             sync.Once
)

// Init sets the worker ID for the default generator. Call once at startup;
// workerID must be unique per running instance.
func Init(workerID int64) {
	once.Do(func() {
		if workerID < 0 || workerID > maxWorkerID {
			panic(fmt.Sprintf("idgen: workerID must be in 0-%d", maxWorkerID))
		}
		defaultGenerator = &Snowflake{workerID: workerID}
	})
}

func NextID() int64 {
	if defaultGenerator == nil {
		Init(1)
	}
	return defaultGenerator.Generate()
}

func (s *Snowflake) Generate() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()

	if now == s.timestamp {
		s.sequence = (s.sequence + 1) & maxSequence
		if s.sequence == 0 {
			// sequence exhausted for this millisecond, spin to the next
			for now <= s.timestamp {
				now = time.Now().UnixMilli()
			}
		}
	} else {
		s.sequence = 0
	}

	s.timestamp = now

	return ((now - epoch) << timestampShift) |
		(s.workerID << workerIDShift) |
		s.sequence
}

func numbered(prefix string) string {
	id := NextID()
	timestamp := time.Now().Format("20060102150405")
	return fmt.Sprintf("%s%s%08d", prefix, timestamp, id%100000000)
}

// GenerateTransactionNo returns a new escrow transaction number.
func GenerateTransactionNo() string {
	return numbered("TXN")
}

// GenerateEntryNo returns a new ledger entry number.
func GenerateEntryNo() string {
	return numbered("LED")
}

// GenerateWithdrawalNo returns a new withdrawal request number.
func GenerateWithdrawalNo() string {
	return numbered("WDR")
}
