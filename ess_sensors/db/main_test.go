package db

import (
	"log"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if err := Init("file::memory:?cache=shared"); err != nil {
		log.Fatal(err)
	}

	exitCode := m.Run()
	Close()
	os.Exit(exitCode)
}

func truncateDB(t *testing.T) {
	_, err := db.Exec(`delete from telemetry;`)
	require.NoError(t, err)
}
