package adapter

import "github.com/nciadapter/nciadapter/internal/nci"

// FrameworkMaxNFCID1Len bounds how much of NCI's LA_NFCID1 value the
// framework's parameter model can hold (NFCID1 is 4, 7, or 10 bytes per
// GLOSSARY; 10 is the upper bound).
const FrameworkMaxNFCID1Len = 10

// ParamLANFCID1 is the only adapter-recognized parameter today (spec
// §4.7); list_params() also reports framework-inherited ids that the
// adapter itself does not interpret.
const ParamLANFCID1 = "LA_NFCID1"

// ListParams implements list_params (spec §6): the adapter's own
// recognized parameter plus whatever the caller's framework inherits.
func (a *Adapter) ListParams(inherited []string) []string {
	out := make([]string, 0, len(inherited)+1)
	out = append(out, ParamLANFCID1)
	out = append(out, inherited...)
	return out
}

// GetParam implements get_param (spec §4.7, §6): for the recognized
// LA_NFCID1 id, query NCI's equivalent parameter and copy at most
// FrameworkMaxNFCID1Len bytes. Unrecognized ids are the caller's
// responsibility to delegate elsewhere.
func (a *Adapter) GetParam(id string) ([]byte, bool) {
	if id != ParamLANFCID1 {
		return nil, false
	}
	var value []byte
	var ok bool
	a.run(func() {
		v, present := a.core.GetParam(nci.ParamLANFCID1)
		if !present {
			return
		}
		if len(v) > FrameworkMaxNFCID1Len {
			v = v[:FrameworkMaxNFCID1Len]
		}
		value = append([]byte(nil), v...)
		ok = true
	})
	return value, ok
}

// SetParams implements set_params (spec §4.7, §6): construct an NCI param
// set and forward it with the reset flag. Only LA_NFCID1 is recognized;
// entries for other ids are ignored here (delegated by the caller).
func (a *Adapter) SetParams(values map[string][]byte, resetOthers bool) error {
	var err error
	a.run(func() {
		v, present := values[ParamLANFCID1]
		if !present {
			if resetOthers {
				err = a.core.SetParam(nci.ParamLANFCID1, nil, true)
			}
			return
		}
		err = a.core.SetParam(nci.ParamLANFCID1, v, resetOthers)
	})
	return err
}
