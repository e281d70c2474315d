package encoding

// Serializable provides a clean, simple interface for serializing and deserializing values.
// Deserialize must leave the receiver untouched when it returns an error.
type Serializable interface {
	Serialize() ([]byte, error)
	Deserialize([]byte) error
}
