package ingest_test

import (
	"os"
	"testing"

	"github.com/pkordes/tripfeed/testutil"
)

func TestMain(m *testing.M) {
	os.Exit(testutil.RunMain(m))
}
