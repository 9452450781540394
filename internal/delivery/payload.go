// Package delivery drains the event buffer and ships each batch to the
// collector over a pluggable transport.
package delivery

import (
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/arkilian/beacon/internal/session"
	"github.com/arkilian/beacon/pkg/types"
)

// SDKVersion is reported in every payload.
const SDKVersion = "1.0.0"

// Metadata is the per-instance part of every payload.
type Metadata struct {
	SiteID      string
	Environment string
	JSVersion   string
	SDKVersion  string
}

// Payload is the collector request body.
type Payload struct {
	SiteID      string        `json:"siteId"`
	UserID      string        `json:"userId"`
	ClientID    string        `json:"clientId"`
	IdentityID  string        `json:"identityId"`
	PageTag     string        `json:"pageTag"`
	PageID      string        `json:"pageId"`
	TabID       string        `json:"tabId"`
	ResponseID  string        `json:"responseId"`
	URL         string        `json:"url"`
	JSVersion   string        `json:"jsVersion"`
	SDKVersion  string        `json:"sdkVersion"`
	Environment string        `json:"environment"`
	Events      []types.Event `json:"jsonEvents"`
}

// BuildPayload assembles a batch from the session snapshot taken at send time.
func BuildPayload(meta Metadata, snap session.Snapshot, responseID types.BatchID, events []types.Event) *Payload {
	sdk := meta.SDKVersion
	if sdk == "" {
		sdk = SDKVersion
	}
	return &Payload{
		SiteID:      meta.SiteID,
		UserID:      snap.UserID,
		ClientID:    snap.ClientID,
		IdentityID:  snap.IdentityID,
		PageTag:     snap.ScreenName,
		PageID:      snap.PageID,
		TabID:       snap.SessionID,
		ResponseID:  responseID.String(),
		URL:         snap.ScreenName,
		JSVersion:   meta.JSVersion,
		SDKVersion:  sdk,
		Environment: meta.Environment,
		Events:      events,
	}
}

// Marshal encodes the payload as JSON.
func (p *Payload) Marshal() ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload %s: %w", p.ResponseID, err)
	}
	return data, nil
}

// CreatedAt returns the time embedded in the response id, or now if the id
// does not parse.
func (p *Payload) CreatedAt() time.Time {
	id, err := types.ParseBatchID(p.ResponseID)
	if err != nil {
		return time.Now().UTC()
	}
	return time.UnixMilli(int64(id.Millis())).UTC()
}

// ObjectKey returns the object path of a batch:
// <prefix>/<siteId>/<yyyy>/<mm>/<dd>/<responseId>.json
func ObjectKey(prefix string, p *Payload) string {
	t := p.CreatedAt()
	site := p.SiteID
	if site == "" {
		site = "unknown"
	}
	return path.Join(prefix, site,
		fmt.Sprintf("%04d", t.Year()),
		fmt.Sprintf("%02d", int(t.Month())),
		fmt.Sprintf("%02d", t.Day()),
		p.ResponseID+".json")
}
