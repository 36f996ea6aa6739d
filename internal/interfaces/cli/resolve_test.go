package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chemlens/chemlens/internal/application/resolution"
	"github.com/chemlens/chemlens/internal/domain/material"
	"github.com/chemlens/chemlens/pkg/types/common"
)

type fakeResolver struct {
	byDescription map[string]resolution.Resolution
}

func (f *fakeResolver) Resolve(_ context.Context, description, _ string) resolution.Resolution {
	if res, ok := f.byDescription[description]; ok {
		return res
	}
	return resolution.Resolution{
		Identifier:      material.IdentifierNotFound,
		DescriptiveName: material.ValueNA,
	}
}

func (f *fakeResolver) Ingest(context.Context, common.SessionID, []material.RawItem) (int, error) {
	return 0, nil
}

func (f *fakeResolver) StartBulkEnrichment() error { return nil }

func (f *fakeResolver) EnrichmentProgress() resolution.Progress { return resolution.Progress{} }

func TestRunResolve(t *testing.T) {
	svc := &fakeResolver{byDescription: map[string]resolution.Resolution{
		"USP GLYCERINE 99.5%": {
			Identifier:      "56-81-5",
			DescriptiveName: "GLYCERIN",
			FinalSearchTerm: "GLYCERINE",
			Source:          "Clean Desc",
			Confidence:      70,
		},
	}}
	rows := []material.RawItem{
		{Description: "USP GLYCERINE 99.5%", SubCategory: "Humectants"},
		{Description: "MYSTERY GOO"},
	}

	var out bytes.Buffer
	require.NoError(t, runResolve(context.Background(), svc, rows, &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t,
		"description,sub_category,identifier,descriptive_name,final_search_term,source,confidence",
		lines[0])
	assert.Equal(t, "USP GLYCERINE 99.5%,Humectants,56-81-5,GLYCERIN,GLYCERINE,Clean Desc,70", lines[1])
	assert.Equal(t, "MYSTERY GOO,,NOT FOUND,N/A,,,0", lines[2])
}

func TestResolveCommand_RequiresInput(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"resolve"})
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CSV file or --term")
}
