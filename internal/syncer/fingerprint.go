package syncer

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gowebpki/jcs"

	"stakeScope/internal/model"
)

type scalarField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type kindRecords struct {
	Kind    model.EventKind   `json:"kind"`
	Records []model.LogRecord `json:"records"`
}

// fingerprintInput lists the snapshot content that decides whether
// subscribers are notified. CapturedAtUnixMillis is deliberately absent.
type fingerprintInput struct {
	Connected bool                 `json:"connected"`
	Endpoint  string               `json:"endpoint"`
	Contract  string               `json:"contract"`
	Height    uint64               `json:"height"`
	Scalars   []scalarField        `json:"scalars"`
	Records   []kindRecords        `json:"records"`
	Roster    []string             `json:"roster"`
	Activity  []model.ActivityItem `json:"activity"`
}

// fingerprint hashes the canonical JSON form of snapshot. kinds fixes the
// order of the per-kind sections.
func fingerprint(snapshot model.SyncSnapshot, kinds []model.EventKind) (string, error) {
	input := fingerprintInput{
		Connected: snapshot.Connected,
		Endpoint:  snapshot.Endpoint,
		Contract:  snapshot.Contract,
		Height:    snapshot.Height,
		Scalars:   make([]scalarField, 0, len(snapshot.Scalars)),
		Records:   make([]kindRecords, 0, len(kinds)),
		Roster:    snapshot.Roster,
		Activity:  snapshot.RecentActivity,
	}

	names := make([]string, 0, len(snapshot.Scalars))
	for name := range snapshot.Scalars {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		input.Scalars = append(input.Scalars, scalarField{Name: name, Value: snapshot.Scalars[name]})
	}

	for _, kind := range kinds {
		input.Records = append(input.Records, kindRecords{Kind: kind, Records: snapshot.RecordsByKind[kind]})
	}

	raw, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("marshal fingerprint: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize fingerprint: %w", err)
	}
	return crypto.Keccak256Hash(canonical).Hex(), nil
}
