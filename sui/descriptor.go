package sui

import "fmt"

// Shared clock object read by the mint entry function for the upload
// timestamp.
const clockObjectID = "0x6"

const defaultGasBudget = "10000000"

// TransactionDescriptor is everything a wallet needs to build, sign, and
// execute the registration transaction itself. The backend hands this to
// the caller instead of holding signing authority.
type TransactionDescriptor struct {
	TargetContract string        `json:"target_contract"`
	TargetFunction string        `json:"target_function"`
	Arguments      MintArguments `json:"arguments"`
	GasBudget      string        `json:"gas_budget"`
}

type MintArguments struct {
	Name     string `json:"name"`
	BlobID   string `json:"blob_id"`
	IsPublic bool   `json:"is_public"`
	Clock    string `json:"clock"`
}

// MintDescriptor builds the move-call descriptor that registers ownership
// of a stored blob. It performs no RPC and never signs anything.
func (c *Client) MintDescriptor(name, blobID string, isPublic bool) (TransactionDescriptor, error) {
	if !c.Configured() {
		return TransactionDescriptor{}, ErrNotConfigured
	}

	return TransactionDescriptor{
		TargetContract: fmt.Sprintf("%s::%s", c.packageID, c.moduleName),
		TargetFunction: "mint_document",
		Arguments: MintArguments{
			Name:     name,
			BlobID:   blobID,
			IsPublic: isPublic,
			Clock:    clockObjectID,
		},
		GasBudget: defaultGasBudget,
	}, nil
}
