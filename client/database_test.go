package client

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessoryDatabaseJSONRoundTrip(t *testing.T) {
	raw := []byte(`{
		"accessories": [{
			"aid": 1,
			"services": [{
				"iid": 1,
				"type": "3E",
				"characteristics": [{
					"iid": 10,
					"type": "25",
					"format": "bool",
					"perms": ["pr", "pw", "ev"],
					"value": true
				}]
			}]
		}]
	}`)

	var db AccessoryDatabase
	require.NoError(t, json.Unmarshal(raw, &db))
	require.Len(t, db.Accessories, 1)
	acc := db.Accessories[0]
	assert.Equal(t, 1, acc.AID)
	require.Len(t, acc.Services, 1)
	require.Len(t, acc.Services[0].Characteristics, 1)

	c, ok := acc.Characteristic(10)
	require.True(t, ok)
	assert.Equal(t, "bool", c.Format)
	assert.Equal(t, []string{"pr", "pw", "ev"}, c.Perms)

	_, ok = acc.Characteristic(999)
	assert.False(t, ok)
}

func TestCharacteristicWriteMarshalsBareFieldsPlusTarget(t *testing.T) {
	w := CharacteristicWrite{
		CharacteristicTarget: CharacteristicTarget{AID: 1, IID: 10},
		Value:                true,
	}
	raw, err := json.Marshal(w)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, float64(1), decoded["aid"])
	assert.Equal(t, float64(10), decoded["iid"])
	assert.Equal(t, true, decoded["value"])
	_, hasAuthData := decoded["authData"]
	assert.False(t, hasAuthData)
}

func TestCharacteristicEventWriteMarshalsEVFlag(t *testing.T) {
	w := CharacteristicEventWrite{
		CharacteristicTarget: CharacteristicTarget{AID: 1, IID: 10},
		EV:                   true,
	}
	raw, err := json.Marshal(w)
	require.NoError(t, err)
	assert.JSONEq(t, `{"aid":1,"iid":10,"ev":true}`, string(raw))
}
