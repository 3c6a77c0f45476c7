package vpk

import (
	"github.com/fxamacker/cbor/v2"
)

// encMode is the CBOR encoder configured with Core Deterministic Encoding:
// sorted map keys, smallest integer encoding, no indefinite-length items.
// The same blob set always serializes to identical bytes.
var encMode cbor.EncMode

// decMode is the CBOR decoder configured to accept standard CBOR. Unknown
// fields are ignored so older readers stay compatible with newer payloads.
var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("vpk: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("vpk: CBOR decoder initialization failed: " + err.Error())
	}
}
