package validator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigContract(t *testing.T) {
	v, err := New()
	if err != nil {
		t.Fatalf("Failed to create validator: %v", err)
	}

	tests := []struct {
		name    string
		data    map[string]interface{}
		wantErr bool
	}{
		{
			name: "valid_config",
			data: map[string]interface{}{
				"root":       "/opt/silver",
				"mode":       "full",
				"svFrontend": "slang",
				"parameters": map[string]interface{}{"WIDTH": 8, "NAME": "core"},
				"defines":    map[string]interface{}{"SIM": nil, "D": 3},
				"verifier":   map[string]interface{}{"debug": true},
			},
			wantErr: false,
		},
		{
			name:    "empty_config",
			data:    map[string]interface{}{},
			wantErr: false,
		},
		{
			name:    "unknown_mode",
			data:    map[string]interface{}{"mode": "turbo"},
			wantErr: true,
		},
		{
			name:    "misspelled_field",
			data:    map[string]interface{}{"mdoe": "full"},
			wantErr: true,
		},
		{
			name:    "empty_yosys_binary",
			data:    map[string]interface{}{"yosys": ""},
			wantErr: true,
		},
		{
			name: "bad_define_name",
			data: map[string]interface{}{
				"defines": map[string]interface{}{"1BAD": nil},
			},
			wantErr: true,
		},
		{
			name: "nested_parameter_value",
			data: map[string]interface{}{
				"parameters": map[string]interface{}{"W": []int{1}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateConfig(tt.data)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAttributesKeepFileOrder(t *testing.T) {
	v, err := New()
	require.NoError(t, err)

	fields, err := v.Attributes([]byte(`{
		"sbox/w:z": "3",
		"sbox/w:a": 1,
		"sbox/i:in": true,
		"sbox/w:m": 0.5
	}`))
	require.NoError(t, err)
	require.Equal(t, []Field{
		{Name: "sbox/w:z", Value: "3"},
		{Name: "sbox/w:a", Value: "1"},
		{Name: "sbox/i:in", Value: "true"},
		{Name: "sbox/w:m", Value: "0.5"},
	}, fields)
}

func TestAttributesRejectsNonScalars(t *testing.T) {
	v, err := New()
	require.NoError(t, err)

	for _, doc := range []string{`{"a": {"b": 1}}`, `{"a": [1]}`, `[1, 2]`, `{"a": null}`, `{not json`} {
		t.Run(doc, func(t *testing.T) {
			require.Error(t, v.ValidateAttributesJSON([]byte(doc)))
		})
	}
}

func TestValidationErrorsListsProblems(t *testing.T) {
	v, err := New()
	require.NoError(t, err)

	require.Nil(t, v.ValidationErrors("#Config", map[string]interface{}{"quiet": true}))

	errs := v.ValidationErrors("#Config", map[string]interface{}{"mode": "x", "quiet": "yes"})
	require.NotEmpty(t, errs)
}
