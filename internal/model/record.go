package model

// Well-known record field keys. These are plain paths into the field tree;
// the accessors below are conveniences over the same data.
const (
	FieldAccountID     = "account_id"
	FieldMethodName    = "method_name"
	FieldPredecessorID = "predecessor_id"
	FieldSignerID      = "signer_id"
	FieldTxHash        = "tx_hash"
	FieldReceiptID     = "receipt_id"
	FieldBlockHeight   = "block_height"
	FieldBlockHash     = "block_hash"
	FieldStatus        = "status"
	FieldActionType    = "action_type"
	FieldAction        = "action"
)

// Record is the immutable field tree for one decoded stream action. It is
// read-only for its entire processing lifetime.
type Record struct {
	fields Value
}

// NewRecord wraps an object Value as a Record. Non-object values become an
// empty record.
func NewRecord(fields Value) Record {
	if fields.Kind() != KindObject {
		fields = Object(map[string]Value{})
	}
	return Record{fields: fields}
}

// RecordFromAction flattens a stream action into a record. Optional fields
// that are absent on the wire are omitted from the tree so that key-existence
// checks stay meaningful.
func RecordFromAction(action Action) Record {
	fields := map[string]Value{
		FieldAccountID:   String(action.AccountID),
		FieldBlockHeight: Number(float64(action.BlockHeight)),
		FieldStatus:      String(action.Status),
		FieldActionType:  String(action.Action.Kind),
		FieldAction:      action.Action.Body,
	}
	if action.BlockHash != "" {
		fields[FieldBlockHash] = String(action.BlockHash)
	}
	if action.TxHash != "" {
		fields[FieldTxHash] = String(action.TxHash)
	}
	if action.ReceiptID != "" {
		fields[FieldReceiptID] = String(action.ReceiptID)
	}
	if action.SignerID != "" {
		fields[FieldSignerID] = String(action.SignerID)
	}
	if action.PredecessorID != "" {
		fields[FieldPredecessorID] = String(action.PredecessorID)
	}
	if method, ok := action.Action.MethodName(); ok {
		fields[FieldMethodName] = String(method)
	}
	return Record{fields: Object(fields)}
}

// Fields returns the whole field tree.
func (r Record) Fields() Value { return r.fields }

// Lookup returns a top-level field by key.
func (r Record) Lookup(key string) (Value, bool) {
	obj, ok := r.fields.AsObject()
	if !ok {
		return Value{}, false
	}
	val, ok := obj[key]
	return val, ok
}

func (r Record) stringField(key string) string {
	val, ok := r.Lookup(key)
	if !ok {
		return ""
	}
	s, _ := val.AsString()
	return s
}

func (r Record) AccountID() string     { return r.stringField(FieldAccountID) }
func (r Record) MethodName() string    { return r.stringField(FieldMethodName) }
func (r Record) PredecessorID() string { return r.stringField(FieldPredecessorID) }
func (r Record) SignerID() string      { return r.stringField(FieldSignerID) }
func (r Record) TxHash() string        { return r.stringField(FieldTxHash) }
func (r Record) ReceiptID() string     { return r.stringField(FieldReceiptID) }

func (r Record) BlockHeight() uint64 {
	val, ok := r.Lookup(FieldBlockHeight)
	if !ok {
		return 0
	}
	num, ok := val.AsNumber()
	if !ok || num < 0 {
		return 0
	}
	return uint64(num)
}
