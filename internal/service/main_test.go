package service

import (
	"os"
	"testing"

	"github.com/ripple-community/pebs-api/internal/testutil/dblock"
)

func TestMain(m *testing.M) {
	release := dblock.Acquire()
	code := m.Run()
	release()
	os.Exit(code)
}
