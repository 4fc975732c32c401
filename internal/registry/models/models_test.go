package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"syndic/internal/registry/models"
	dErrors "syndic/pkg/domain-errors"
)

func TestClampCaps(t *testing.T) {
	tests := []struct {
		name      string
		kind      models.Kind
		requested models.Caps
		want      models.Caps
	}{
		{"replica always zero", models.KindReplica, models.CapsAll, 0},
		{"replica zero stays zero", models.KindReplica, 0, 0},
		{"acquisition always metadata write", models.KindAcquisition, 0, models.CapWriteMetadata},
		{"acquisition ignores extra bits", models.KindAcquisition, models.CapsAll, models.CapWriteMetadata},
		{"user keeps requested subset", models.KindUser, models.CapReadData | models.CapWriteData, models.CapReadData | models.CapWriteData},
		{"user unknown bits stripped", models.KindUser, models.Caps(1<<40) | models.CapReadData, models.CapReadData},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, models.ClampCaps(tc.kind, tc.requested))
		})
	}
}

func TestCheckCaps(t *testing.T) {
	g := &models.Gateway{Caps: models.CapReadData | models.CapReadMetadata}
	assert.True(t, g.CheckCaps(models.CapReadData))
	assert.True(t, g.CheckCaps(models.CapReadData|models.CapReadMetadata))
	assert.False(t, g.CheckCaps(models.CapWriteData))
	assert.False(t, g.CheckCaps(models.CapReadData|models.CapWriteData))
}

func TestValidName(t *testing.T) {
	assert.True(t, models.ValidName("my-gateway.01"))
	assert.True(t, models.ValidName("Gateway With Spaces"))
	assert.True(t, models.ValidName("host:port-style"))

	assert.False(t, models.ValidName(""))
	assert.False(t, models.ValidName("9981"), "numeric names would shadow IDs")
	assert.False(t, models.ValidName("-42"))
	assert.False(t, models.ValidName("gateway/with/slashes"))
	assert.False(t, models.ValidName("newline\nname"))
}

func TestParseKind(t *testing.T) {
	for short, want := range map[string]models.Kind{
		"UG": models.KindUser, "RG": models.KindReplica, "AG": models.KindAcquisition,
	} {
		got, ok := models.ParseKind(short)
		require.True(t, ok)
		assert.Equal(t, want, got)
		assert.Equal(t, short, got.String())
	}
	_, ok := models.ParseKind("XG")
	assert.False(t, ok)
}

func TestDefaultBlocksize(t *testing.T) {
	assert.Equal(t, int64(61440), models.DefaultBlocksize(models.KindAcquisition))
	assert.Zero(t, models.DefaultBlocksize(models.KindUser))
	assert.Zero(t, models.DefaultBlocksize(models.KindReplica))
}

func TestValidateWriteNamesEveryReadOnlyField(t *testing.T) {
	err := models.ValidateWrite(map[string]any{
		"host":     "ok.example.com",
		"owner_id": int64(9),
		"caps":     int64(1),
		"id":       int64(5),
	})
	require.True(t, dErrors.HasCode(err, dErrors.CodeReadOnlyField))
	assert.Equal(t, []string{"caps", "id", "owner_id"}, dErrors.FieldsOf(err))

	assert.NoError(t, models.ValidateWrite(map[string]any{"host": "ok", "port": 80}))
}

func TestValidateFields(t *testing.T) {
	err := models.ValidateFields(map[string]any{
		"name": "1234",
		"port": 99999,
	})
	require.True(t, dErrors.HasCode(err, dErrors.CodeInvalidField))
	assert.Equal(t, []string{"name", "port"}, dErrors.FieldsOf(err))

	assert.NoError(t, models.ValidateFields(map[string]any{
		"name":         "fine",
		"port":         float64(8080), // JSON decoding yields float64
		"cert_expires": models.NeverExpires,
	}))
}

func TestApplyAndWouldChange(t *testing.T) {
	g := &models.Gateway{Name: "alpha", Host: "a.example.com", Port: 80}

	assert.False(t, models.WouldChange(g, "host", "a.example.com"))
	assert.True(t, models.WouldChange(g, "host", "b.example.com"))
	assert.False(t, models.WouldChange(g, "port", float64(80)))

	require.NoError(t, models.Apply(g, "host", "b.example.com"))
	require.NoError(t, models.Apply(g, "port", float64(443)))
	assert.Equal(t, "b.example.com", g.Host)
	assert.Equal(t, 443, g.Port)

	err := models.Apply(g, "no_such_field", 1)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
}

func TestCertRelevant(t *testing.T) {
	assert.True(t, models.CertRelevant("host"))
	assert.True(t, models.CertRelevant("name"))
	assert.True(t, models.CertRelevant("config"))
	assert.False(t, models.CertRelevant("session_timeout"))
	assert.False(t, models.CertRelevant("session_expires"))
}

func TestCreateParamsMissingFields(t *testing.T) {
	p := models.CreateParams{Name: "alpha"}
	assert.ElementsMatch(t, []string{"host", "port", "control_key"}, p.MissingFields())

	p = models.CreateParams{Name: "alpha", Host: "h", Port: 80, ControlKey: "k"}
	assert.Empty(t, p.MissingFields())
}
