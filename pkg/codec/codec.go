// Package codec converts protocol-buffer messages to and from their canonical
// JSON mapping.
//
// Encoding uses proto field JSON names. Decoding ignores unknown fields so
// that stubs written against a newer schema still decode.
package codec

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
)

// ErrNilMessage is returned when encoding a nil message.
var ErrNilMessage = errors.New("codec: nil message")

// DecodeError is returned when JSON does not conform to the target message schema.
type DecodeError struct {
	// Type is the full name of the message being decoded.
	Type string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("codec: decode %s: %v", e.Type, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Resolver finds message and extension types, e.g. for google.protobuf.Any.
type Resolver interface {
	protoregistry.MessageTypeResolver
	protoregistry.ExtensionTypeResolver
}

// Codec converts messages to and from JSON. The zero value is not usable; use New.
type Codec struct {
	resolver  Resolver
	marshal   protojson.MarshalOptions
	unmarshal protojson.UnmarshalOptions
}

// Option configures a Codec.
type Option func(*Codec)

// WithResolver sets the type resolver. Defaults to protoregistry.GlobalTypes.
func WithResolver(r Resolver) Option {
	return func(c *Codec) {
		if r != nil {
			c.resolver = r
		}
	}
}

// WithIndent pretty-prints encoded JSON using the given indent.
func WithIndent(indent string) Option {
	return func(c *Codec) {
		c.marshal.Multiline = indent != ""
		c.marshal.Indent = indent
	}
}

// New creates a Codec.
func New(opts ...Option) *Codec {
	c := &Codec{resolver: protoregistry.GlobalTypes}
	for _, opt := range opts {
		opt(c)
	}
	c.marshal.Resolver = c.resolver
	c.unmarshal = protojson.UnmarshalOptions{
		DiscardUnknown: true,
		Resolver:       c.resolver,
	}
	return c
}

// Default is a Codec using the global type registry.
var Default = New()

// ToJSON encodes msg as JSON.
func (c *Codec) ToJSON(msg proto.Message) ([]byte, error) {
	if msg == nil {
		return nil, ErrNilMessage
	}
	data, err := c.marshal.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("codec: encode %s: %w", msg.ProtoReflect().Descriptor().FullName(), err)
	}
	return data, nil
}

// FromJSON decodes data into a new message of type mt.
func (c *Codec) FromJSON(data []byte, mt protoreflect.MessageType) (proto.Message, error) {
	if mt == nil {
		return nil, ErrNilMessage
	}
	msg := mt.New().Interface()
	if err := c.Unmarshal(data, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// Unmarshal decodes data into msg, which is reset first.
func (c *Codec) Unmarshal(data []byte, msg proto.Message) error {
	if msg == nil {
		return ErrNilMessage
	}
	if err := c.unmarshal.Unmarshal(data, msg); err != nil {
		return &DecodeError{Type: string(msg.ProtoReflect().Descriptor().FullName()), Err: err}
	}
	return nil
}

// ResolveType looks up a message type by its full name.
func (c *Codec) ResolveType(fullName string) (protoreflect.MessageType, error) {
	mt, err := c.resolver.FindMessageByName(protoreflect.FullName(fullName))
	if err != nil {
		return nil, fmt.Errorf("codec: resolve %s: %w", fullName, err)
	}
	return mt, nil
}
