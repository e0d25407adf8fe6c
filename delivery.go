package broker

import (
	"bytes"
	"compress/gzip"
	"io"
	"time"

	"github.com/qpid-connengine/broker/internal/buffer"
	"github.com/qpid-connengine/broker/internal/wire"
)

// DeliveryMessage is the native representation write_delivery consumes: the
// basic-properties header and the (possibly still store-compressed) body.
// Converters bridging other stored formats to this shape live outside this
// package, per §4.5 step 1.
type DeliveryMessage struct {
	Properties wire.BasicProperties
	Body       []byte
	Exchange   string
	RoutingKey string
}

// InstanceProperties carries the per-delivery-instance facts that do not
// belong to the stored message itself.
type InstanceProperties struct {
	Redelivered bool
}

// WriteDelivery emits a Basic.Deliver for msg to consumerTag on ch, per
// §4.5. It returns the number of octets written across every frame.
func (e *Engine) WriteDelivery(ch uint16, msg DeliveryMessage, instanceProps InstanceProperties, deliveryTag uint64, consumerTag string) (int, error) {
	method := wire.BasicDeliver{
		ConsumerTag: consumerTag,
		DeliveryTag: deliveryTag,
		Redelivered: instanceProps.Redelivered,
		Exchange:    msg.Exchange,
		RoutingKey:  msg.RoutingKey,
	}
	return e.writeDelivery(ch, method, msg)
}

// WriteGetOk emits a Basic.Get-Ok for msg, the synchronous counterpart of
// WriteDelivery used to answer Basic.Get.
func (e *Engine) WriteGetOk(ch uint16, msg DeliveryMessage, instanceProps InstanceProperties, deliveryTag uint64, messageCount uint32) (int, error) {
	method := wire.BasicGetOk{
		DeliveryTag:  deliveryTag,
		Redelivered:  instanceProps.Redelivered,
		Exchange:     msg.Exchange,
		RoutingKey:   msg.RoutingKey,
		MessageCount: messageCount,
	}
	return e.writeDelivery(ch, method, msg)
}

// WriteReturn emits a Basic.Return for an unroutable mandatory/immediate
// publish.
func (e *Engine) WriteReturn(ch uint16, msg DeliveryMessage, replyCode ReplyCode, replyText string) (int, error) {
	method := wire.BasicReturn{
		ReplyCode:  uint16(replyCode),
		ReplyText:  replyText,
		Exchange:   msg.Exchange,
		RoutingKey: msg.RoutingKey,
	}
	return e.writeDelivery(ch, method, msg)
}

// writeDelivery decides compression bridging, then emits the composite
// {method, content-header, body chunks...} frame sequence.
func (e *Engine) writeDelivery(ch uint16, method wire.Method, msg DeliveryMessage) (int, error) {
	props, body, err := e.bridgeCompression(msg.Properties, msg.Body)
	if err != nil {
		return 0, err
	}

	header := wire.ContentHeader{
		ClassID:    wire.ClassBasic,
		BodySize:   uint64(len(body)),
		Properties: props,
	}

	frames, err := buildDeliveryFrames(ch, method, &header, body, e.maxFrameSize)
	if err != nil {
		return 0, err
	}

	written := 0
	for _, f := range frames {
		var buf buffer.Buffer
		wire.WriteFrame(&buf, f)
		if err := e.sender.Send(buf.Bytes()); err != nil {
			return written, err
		}
		written += buf.Len()
	}
	e.lastWriteAt = time.Now()
	return written, nil
}

// bridgeCompression implements §4.5 step 2. It returns props/body unchanged
// unless a bridging rule applies, in which case it returns a copied header
// so the caller's stored message is never mutated.
func (e *Engine) bridgeCompression(props wire.BasicProperties, body []byte) (wire.BasicProperties, []byte, error) {
	isGzipped := props.HasContentEncoding() && props.ContentEncoding == "gzip"

	if isGzipped && !e.clientProps.compressionSupported {
		inflated, err := gunzip(body)
		if err != nil {
			// Inflation failure: send unchanged rather than fail the delivery.
			return props, body, nil
		}
		copied := props.Clone()
		copied.ClearContentEncoding()
		return copied, inflated, nil
	}

	if !isGzipped && e.clientProps.compressionSupported && !props.HasContentEncoding() &&
		len(body) > e.cfg.MessageCompressionThreshold {
		deflated, err := gzipBytes(body)
		if err != nil {
			return props, body, nil
		}
		copied := props.Clone()
		copied.SetContentEncoding("gzip")
		return copied, deflated, nil
	}

	return props, body, nil
}

// buildDeliveryFrames assembles the method frame, the content-header frame,
// and as many body frames as needed to carry body within max_frame_size −
// frame_overhead octets each (§4.5 step 3).
func buildDeliveryFrames(ch uint16, method wire.Method, header *wire.ContentHeader, body []byte, maxFrameSize uint32) ([]wire.Frame, error) {
	methodFrame, err := wire.EncodeMethodFrame(ch, method.ClassID(), method.MethodID(), method)
	if err != nil {
		return nil, err
	}
	headerFrame, err := wire.EncodeContentHeaderFrame(ch, header)
	if err != nil {
		return nil, err
	}

	frames := []wire.Frame{methodFrame, headerFrame}

	chunkSize := deliveryChunkSize(maxFrameSize)
	for offset := 0; offset < len(body); offset += chunkSize {
		end := offset + chunkSize
		if end > len(body) {
			end = len(body)
		}
		frames = append(frames, wire.EncodeContentBodyFrame(ch, body[offset:end]))
	}
	return frames, nil
}

// deliveryChunkSize returns the largest body-frame payload allowed under
// the negotiated max-frame-size, defaulting to the protocol minimum before
// tuning has set a concrete value.
func deliveryChunkSize(maxFrameSize uint32) int {
	if maxFrameSize == 0 {
		maxFrameSize = wire.MinFrameSize
	}
	size := int(maxFrameSize) - wire.FrameOverhead
	if size <= 0 {
		size = 1
	}
	return size
}

func gunzip(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
