package log_test

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kode4food/swfcatalog/pkg/api"
	"github.com/kode4food/swfcatalog/pkg/log"
)

type errStub string

func TestWorkflowID(t *testing.T) {
	attr := log.WorkflowID(api.WorkflowID("swf1"))
	assertAttrEqual(t, attr, "workflow_id", "swf1")
}

func TestLocationKey(t *testing.T) {
	attr := log.LocationKey("swf-provider:dev")
	assertAttrEqual(t, attr, "location_key", "swf-provider:dev")
}

func TestTopic(t *testing.T) {
	assertAttrEqual(t, log.Topic("swf"), "topic", "swf")
}

func TestError(t *testing.T) {
	attr := log.Error(nil)
	assertAttrEqual(t, attr, "error", "")

	attr = log.Error(errStub("boom"))
	assertAttrEqual(t, attr, "error", "boom")
}

func TestErrorString(t *testing.T) {
	attr := log.ErrorString("badness")
	assertAttrEqual(t, attr, "error", "badness")
}

func (e errStub) Error() string { return string(e) }

func assertAttrEqual(t *testing.T, attr slog.Attr, key, value string) {
	t.Helper()
	assert.Equal(t, key, attr.Key)
	assert.Equal(t, value, attr.Value.String())
}
