package migrate

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// newRunID mints an identifier for a fresh migration run. Run ids key the
// checkpoint cursors, so they only need to be unique and easy to paste
// back into MIGRATE_RUN_ID when resuming an interrupted run.
func newRunID() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("run-%d", time.Now().Unix())
	}
	return fmt.Sprintf("run-%d-%s", time.Now().Unix(), hex.EncodeToString(buf))
}
