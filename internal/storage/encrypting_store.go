package storage

import "github.com/nciadapter/nciadapter/internal/security"

// EncryptingParamStore wraps a ParamStore so that the LA_NFCID1-class
// override value and the activation audit log's protocol/rf_intf/mode/
// outcome fields are encrypted at rest, decorator-style over the plain
// backend (SQLite or file). Grounded on the teacher's storage wrapper
// pattern (internal/storage/redis_context.go wrapping a plain client with
// a connection-pool layer) generalized to an encryption layer instead.
type EncryptingParamStore struct {
	inner ParamStore
	enc   *security.EncryptionService
}

// NewEncryptingParamStore wraps inner so every SaveParam/AppendActivation
// call encrypts before it reaches the backend, and every GetParam/
// ListParams/ListActivations call decrypts on the way out.
func NewEncryptingParamStore(inner ParamStore, enc *security.EncryptionService) *EncryptingParamStore {
	return &EncryptingParamStore{inner: inner, enc: enc}
}

func (s *EncryptingParamStore) SaveParam(override ParamOverride) error {
	ciphertext, err := s.enc.EncryptParamOverride(override.Value)
	if err != nil {
		return err
	}
	override.Value = []byte(ciphertext)
	return s.inner.SaveParam(override)
}

func (s *EncryptingParamStore) GetParam(id string) (ParamOverride, bool, error) {
	override, ok, err := s.inner.GetParam(id)
	if err != nil || !ok {
		return override, ok, err
	}
	plaintext, err := s.enc.DecryptParamOverride(string(override.Value))
	if err != nil {
		return ParamOverride{}, false, err
	}
	override.Value = plaintext
	return override, true, nil
}

func (s *EncryptingParamStore) ListParams() ([]ParamOverride, error) {
	overrides, err := s.inner.ListParams()
	if err != nil {
		return nil, err
	}
	for i, o := range overrides {
		plaintext, err := s.enc.DecryptParamOverride(string(o.Value))
		if err != nil {
			return nil, err
		}
		overrides[i].Value = plaintext
	}
	return overrides, nil
}

func (s *EncryptingParamStore) DeleteParam(id string) error {
	return s.inner.DeleteParam(id)
}

func (s *EncryptingParamStore) AppendActivation(record ActivationRecord) error {
	fields, err := s.enc.EncryptFields(map[string]string{
		"protocol": record.Protocol,
		"rf_intf":  record.RFIntf,
		"mode":     record.Mode,
		"outcome":  record.Outcome,
	})
	if err != nil {
		return err
	}
	record.Protocol = fields["protocol"]
	record.RFIntf = fields["rf_intf"]
	record.Mode = fields["mode"]
	record.Outcome = fields["outcome"]
	return s.inner.AppendActivation(record)
}

func (s *EncryptingParamStore) ListActivations(limit int) ([]ActivationRecord, error) {
	records, err := s.inner.ListActivations(limit)
	if err != nil {
		return nil, err
	}
	for i, r := range records {
		fields, err := s.enc.DecryptFields(map[string]string{
			"protocol": r.Protocol,
			"rf_intf":  r.RFIntf,
			"mode":     r.Mode,
			"outcome":  r.Outcome,
		})
		if err != nil {
			return nil, err
		}
		records[i].Protocol = fields["protocol"]
		records[i].RFIntf = fields["rf_intf"]
		records[i].Mode = fields["mode"]
		records[i].Outcome = fields["outcome"]
	}
	return records, nil
}

func (s *EncryptingParamStore) Close() error {
	return s.inner.Close()
}
