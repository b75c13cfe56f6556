package syncer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/catalogdocumentflow/internal/models"
)

func TestCanonicalJSONOrdersKeys(t *testing.T) {
	a := map[string]any{"name": "Organizational Behavior", "competencyUnits": 3, "courseCode": "C715"}
	b := map[string]any{"courseCode": "C715", "competencyUnits": 3, "name": "Organizational Behavior"}

	ca, err := CanonicalJSON(a)
	require.NoError(t, err)
	cb, err := CanonicalJSON(b)
	require.NoError(t, err)
	assert.Equal(t, ca, cb)
	assert.JSONEq(t, `{"competencyUnits":3,"courseCode":"C715","name":"Organizational Behavior"}`, string(ca))
}

func TestContentHashIgnoresConstructionPath(t *testing.T) {
	record := models.CourseRecord{
		CourseCode:      "C715",
		ControlNumber:   "MGMT 3000",
		Name:            "Organizational Behavior",
		CompetencyUnits: 3,
	}

	payload, err := AsPayload(record)
	require.NoError(t, err)

	fromStruct, err := ContentHash(record)
	require.NoError(t, err)
	fromMap, err := ContentHash(payload)
	require.NoError(t, err)
	assert.Equal(t, fromStruct, fromMap, "struct and map forms of the same payload must hash identically")
}

func TestContentHashDetectsChange(t *testing.T) {
	base := map[string]any{"courseCode": "C715", "competencyUnits": 3}
	changed := map[string]any{"courseCode": "C715", "competencyUnits": 4}

	h1, err := ContentHash(base)
	require.NoError(t, err)
	h2, err := ContentHash(changed)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestNewDocumentComputesHash(t *testing.T) {
	record := models.CourseRecord{CourseCode: "C715", Name: "Organizational Behavior", CompetencyUnits: 3}

	doc, err := NewDocument("courses", "C715", record)
	require.NoError(t, err)
	assert.Equal(t, "courses", doc.CollectionName)
	assert.Equal(t, "C715", doc.DocumentID)
	assert.NotEmpty(t, doc.ContentHash)

	expected, err := ContentHash(doc.Payload)
	require.NoError(t, err)
	assert.Equal(t, expected, doc.ContentHash)
}
