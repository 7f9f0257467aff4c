package identity

import (
	"strconv"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// GenericMask is shown when an identity cannot be parsed or is too short to mask.
const GenericMask = "****"

// Mask hides the middle of a canonical identity: "+14155550123" becomes
// "+1 415****123". It never fails; anything it cannot read becomes GenericMask.
func Mask(identity string) string {
	num, err := phonenumbers.Parse(identity, "ZZ")
	if err != nil {
		return GenericMask
	}
	national := phonenumbers.GetNationalSignificantNumber(num)
	k := 2
	if len(national) >= 7 {
		k = 3
	}
	if len(national) <= 2*k {
		return GenericMask
	}

	var b strings.Builder
	b.WriteString("+")
	b.WriteString(strconv.Itoa(int(num.GetCountryCode())))
	b.WriteString(" ")
	b.WriteString(national[:k])
	b.WriteString("****")
	b.WriteString(national[len(national)-k:])
	return b.String()
}
