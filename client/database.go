// Package client defines the accessory-database model shared by
// client/ip and client/ble ("Accessory database"): the JSON
// tree both transports decode into (IP from a single JSON response) or
// construct (BLE from per-characteristic GATT discovery).
package client

// AccessoryDatabase is the top-level tree a getAccessories call returns.
type AccessoryDatabase struct {
	Accessories []Accessory `json:"accessories"`
}

// Accessory is one accessory in a (possibly bridged) database. AID is
// always 1 for single-accessory devices and unique within a bridge.
type Accessory struct {
	AID      int       `json:"aid"`
	Services []Service `json:"services"`
}

// Characteristic returns the characteristic with the given iid, across
// every service on this accessory.
func (a *Accessory) Characteristic(iid int) (*Characteristic, bool) {
	for si := range a.Services {
		for ci := range a.Services[si].Characteristics {
			if a.Services[si].Characteristics[ci].IID == iid {
				return &a.Services[si].Characteristics[ci], true
			}
		}
	}
	return nil, false
}

// Service is one GATT-mapped HAP service within an accessory.
type Service struct {
	IID             int              `json:"iid"`
	Type            string           `json:"type"`
	Characteristics []Characteristic `json:"characteristics"`
	Primary         bool             `json:"primary,omitempty"`
	Hidden          bool             `json:"hidden,omitempty"`
	LinkedServices  []int            `json:"linked,omitempty"`
}

// Characteristic is one HAP characteristic, unique by iid within its
// accessory.
type Characteristic struct {
	IID              int         `json:"iid"`
	Type             string      `json:"type"`
	Format           string      `json:"format"`
	Perms            []string    `json:"perms"`
	Value            interface{} `json:"value,omitempty"`
	Unit             string      `json:"unit,omitempty"`
	MinValue         interface{} `json:"minValue,omitempty"`
	MaxValue         interface{} `json:"maxValue,omitempty"`
	MinStep          interface{} `json:"minStep,omitempty"`
	Description      string      `json:"description,omitempty"`
	ValidValues      []int       `json:"valid-values,omitempty"`
	ValidValuesRange []int       `json:"valid-values-range,omitempty"`
	EV               bool        `json:"ev,omitempty"`
}

// Permission strings a characteristic's "perms" array may carry.
const (
	PermPairedRead   = "pr"
	PermPairedWrite  = "pw"
	PermEvents       = "ev"
	PermAdditionalAuth = "aa"
	PermTimedWrite   = "tw"
	PermHidden       = "hd"
)

// CharacteristicTarget addresses one characteristic within a database by
// its accessory id and instance id, the "aid.iid" form every
// get/set/subscribe operation's id list uses.
type CharacteristicTarget struct {
	AID int `json:"aid"`
	IID int `json:"iid"`
}

// CharacteristicWrite is one entry of a setCharacteristics request body
// : either a bare value or, for authenticated/remote
// writes, the richer object form.
type CharacteristicWrite struct {
	CharacteristicTarget
	Value    interface{} `json:"value"`
	AuthData string      `json:"authData,omitempty"`
	Remote   bool        `json:"remote,omitempty"`
	Response bool        `json:"r,omitempty"`
}

// CharacteristicEventWrite is one entry of a subscribe/unsubscribe PUT
// body : {"aid":1,"iid":10,"ev":true|false}.
type CharacteristicEventWrite struct {
	CharacteristicTarget
	EV bool `json:"ev"`
}

// CharacteristicStatus is one entry of a multi-status (207) response
// body, or of a subscribe/unsubscribe acknowledgement.
type CharacteristicStatus struct {
	AID    int `json:"aid"`
	IID    int `json:"iid"`
	Status int `json:"status"`
}

// CharacteristicEvent is one entry of an EVENT/1.0 frame's body, pushed
// for a subscribed characteristic whenever its value changes. Unlike
// Characteristic, events always carry the owning aid.
type CharacteristicEvent struct {
	AID   int         `json:"aid"`
	IID   int         `json:"iid"`
	Value interface{} `json:"value"`
}

// GetOptions controls which optional fields getCharacteristics requests
// alongside each target's value ("/characteristics?id=...&meta=...&perms=...&type=...&ev=...").
type GetOptions struct {
	Meta  bool
	Perms bool
	Type  bool
	EV    bool
}
