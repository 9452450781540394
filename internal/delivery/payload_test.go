package delivery

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkilian/beacon/internal/session"
	"github.com/arkilian/beacon/pkg/types"
)

func testSnapshot() session.Snapshot {
	return session.Snapshot{
		SessionID:  "sess-1",
		ClientID:   "client-1",
		UserID:     "user-1",
		IdentityID: "device-1",
		ScreenName: "Checkout",
		PageID:     "page-1",
		Started:    true,
	}
}

func TestBuildPayload_Fields(t *testing.T) {
	id, err := types.NewBatchIDGenerator().NextAt(time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	events := []types.Event{types.NewEvent(types.EventClick, "buy")}
	p := BuildPayload(Metadata{SiteID: "site-9", Environment: "staging", JSVersion: "4.2"}, testSnapshot(), id, events)

	data, err := p.Marshal()
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))

	want := map[string]string{
		"siteId":      "site-9",
		"userId":      "user-1",
		"clientId":    "client-1",
		"identityId":  "device-1",
		"pageTag":     "Checkout",
		"pageId":      "page-1",
		"tabId":       "sess-1",
		"responseId":  id.String(),
		"url":         "Checkout",
		"jsVersion":   "4.2",
		"sdkVersion":  SDKVersion,
		"environment": "staging",
	}
	for k, v := range want {
		assert.Equal(t, v, raw[k], k)
	}

	list, ok := raw["jsonEvents"].([]interface{})
	require.True(t, ok)
	require.Len(t, list, 1)
	ev := list[0].(map[string]interface{})
	assert.Equal(t, "CLICK", ev["type"])
	assert.Equal(t, "buy", ev["id"])
	assert.NotContains(t, ev, "sensors", "null fields are omitted")
	assert.NotContains(t, ev, "url")
}

func TestObjectKey(t *testing.T) {
	id, err := types.NewBatchIDGenerator().NextAt(time.Date(2026, 3, 9, 23, 59, 0, 0, time.UTC))
	require.NoError(t, err)

	p := BuildPayload(Metadata{SiteID: "site-9"}, testSnapshot(), id, nil)
	assert.Equal(t, "events/site-9/2026/03/09/"+id.String()+".json", ObjectKey("events", p))
	assert.Equal(t, "site-9/2026/03/09/"+id.String()+".json", ObjectKey("", p))

	p.SiteID = ""
	assert.Equal(t, "unknown/2026/03/09/"+id.String()+".json", ObjectKey("", p))
}

func TestCreatedAt_BadIDFallsBackToNow(t *testing.T) {
	p := &Payload{ResponseID: "not-a-batch-id"}
	assert.WithinDuration(t, time.Now(), p.CreatedAt(), time.Minute)
}
