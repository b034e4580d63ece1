package hapuuid

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnsureLongUUIDPadsShortForm(t *testing.T) {
	assert.Equal(t, "0000003E-0000-1000-8000-0026BB765291", EnsureLongUUID("3E"))
	assert.Equal(t, "0000003E-0000-1000-8000-0026BB765291", EnsureLongUUID("003E"))
}

func TestEnsureLongUUIDUppercasesLongForm(t *testing.T) {
	assert.Equal(t, "0000003E-0000-1000-8000-0026BB765291",
		EnsureLongUUID("0000003e-0000-1000-8000-0026bb765291"))
}

func TestShortFormRoundTrip(t *testing.T) {
	long := EnsureLongUUID("23")
	assert.Equal(t, "00000023", ShortForm(long))
}

func TestShortFormLeavesNonHAPBaseUUIDAlone(t *testing.T) {
	custom := "12345678-0000-1000-8000-aabbccddeeff"
	assert.Equal(t, strings.ToUpper(custom), ShortForm(custom))
}

func TestServiceAndCharacteristicNames(t *testing.T) {
	name, ok := ServiceName("0000003E")
	assert.True(t, ok)
	assert.Equal(t, "accessory-information", name)

	cname, ok := CharacteristicName("00000025")
	assert.True(t, ok)
	assert.Equal(t, "on", cname)
}

func TestCategoryName(t *testing.T) {
	assert.Equal(t, "lightbulb", CategoryName(5))
	assert.Equal(t, "unknown", CategoryName(999))
}

