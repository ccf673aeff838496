package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendance/internal/models"
	"attendance/internal/state"
)

func TestDetectSeparator(t *testing.T) {
	tests := []struct {
		text string
		want rune
	}{
		{"Ana\t1199\nBruno\t1188", '\t'},
		{"Ana;1199", ';'},
		{"Ana,1199", ','},
		{"Ana;1199,ext\tx", '\t'},
		{"Ana Souza\nBruno, Jr", NoSeparator},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectSeparator(tt.text), tt.text)
	}
}

func TestParse_NamesOnePerLine(t *testing.T) {
	got, err := Parse("João Silva\n\n  Maria Santos \r\nPedro Oliveira\n", nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, []state.GuestInput{
		{Name: "João Silva"},
		{Name: "Maria Santos"},
		{Name: "Pedro Oliveira"},
	}, got)
}

func TestParse_FixedFieldsWithoutColumns(t *testing.T) {
	got, err := Parse("Ana;11999990000;ana@example.com\nBruno;;", nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, []state.GuestInput{
		{Name: "Ana", Phone: "11999990000", Email: "ana@example.com"},
		{Name: "Bruno"},
	}, got)
}

func TestParse_PositionalColumns(t *testing.T) {
	columns := []string{"Nome", "Mesa"}
	got, err := Parse("Ana\t4\nBruno\t\tignored", columns, Options{})
	require.NoError(t, err)
	assert.Equal(t, []state.GuestInput{
		{Fields: map[string]string{"Nome": "Ana", "Mesa": "4"}},
		{Fields: map[string]string{"Nome": "Bruno", "Mesa": ""}},
	}, got)
}

func TestParse_HeaderMapsByName(t *testing.T) {
	columns := []string{"Nome", "Mesa"}
	text := "mesa,Extra,nome,Status\n2,x,Ana,sim\n3,y,\"Bruno, Jr\",declined"
	got, err := Parse(text, columns, Options{Header: true})
	require.NoError(t, err)
	assert.Equal(t, []state.GuestInput{
		{Status: models.StatusConfirmed, Fields: map[string]string{"Nome": "Ana", "Mesa": "2"}},
		{Status: models.StatusDeclined, Fields: map[string]string{"Nome": "Bruno, Jr", "Mesa": "3"}},
	}, got)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse("  \n ", nil, Options{})
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = Parse("Nome\n", []string{"Nome"}, Options{Header: true})
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = Parse("status,Nome\nmaybe,Ana", []string{"Nome"}, Options{Header: true})
	assert.ErrorContains(t, err, "unknown status")
}
