package codec

import (
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// PhoneDomainTag separates phone number hashes from any other keccak256 use of a phone number.
const PhoneDomainTag = "BOSagora Phone Number"

var phoneArguments abi.Arguments

func init() {
	stringType, err := abi.NewType("string", "", nil)
	if err != nil {
		panic(err)
	}
	phoneArguments = abi.Arguments{{Name: "tag", Type: stringType}, {Name: "phone", Type: stringType}}
}

// PhoneHash returns keccak256(abi.encode(PhoneDomainTag, phone)). The phone must already be
// in canonical international form; a different rendering of the same number hashes differently.
func PhoneHash(phone string) common.Hash {
	encoded, err := phoneArguments.Pack(PhoneDomainTag, phone)
	if err != nil {
		// two strings always pack
		panic(err)
	}
	return Hash(encoded)
}
