package core

import (
	"go.opentelemetry.io/otel/attribute"
)

const (
	AttributeKeyChainID = attribute.Key("chain_id")
	AttributeKeyLaneID  = attribute.Key("lane_id")
	AttributeKeyNonce   = attribute.Key("nonce")
	AttributeKeyState   = attribute.Key("state")
	AttributeKeyHeight  = attribute.Key("height")
)

// AttributeGroup prefixes the given key to all attributes.
//
// For example, if the key is "foo" and the key of an attribute is "bar", the new key will be "foo.bar".
func AttributeGroup(key string, attributes ...attribute.KeyValue) []attribute.KeyValue {
	newAttrs := make([]attribute.KeyValue, 0, len(attributes))
	for _, attr := range attributes {
		newAttrs = append(newAttrs, attribute.KeyValue{
			Key:   attribute.Key(key + "." + string(attr.Key)),
			Value: attr.Value,
		})
	}
	return newAttrs
}

// WithLaneAttributes returns span attributes identifying a lane between two chains.
func WithLaneAttributes(src, dst Chain, lane LaneID) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttributeGroup("src", AttributeKeyChainID.String(src.ChainID()))[0],
		AttributeGroup("dst", AttributeKeyChainID.String(dst.ChainID()))[0],
		AttributeKeyLaneID.String(lane.String()),
	}
}
