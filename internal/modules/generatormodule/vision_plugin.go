package generatormodule

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/hashicorp/go-hclog"
	goplugin "github.com/hashicorp/go-plugin"
	"github.com/mantonx/mediatags/internal/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// VisionPluginName is the name the vision tagger is dispensed under
const VisionPluginName = "vision"

// VisionHandshake must match between host and vision plugin binaries
var VisionHandshake = goplugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "MEDIATAGS_VISION_PLUGIN",
	MagicCookieValue: "mediatags_vision_v1",
}

const (
	visionServiceName  = "mediatags.vision.v1.VisionTagger"
	generateTagsMethod = "/" + visionServiceName + "/GenerateTags"
)

// visionServer is the handler type of the vision gRPC service
type visionServer interface {
	generateTags(ctx context.Context, req *structpb.Struct) (*structpb.ListValue, error)
}

// visionServiceDesc describes the service by hand. Requests are a
// structpb.Struct carrying path and media_type, responses a structpb.ListValue
// of tag strings, so both sides only need the protobuf well-known types.
var visionServiceDesc = grpc.ServiceDesc{
	ServiceName: visionServiceName,
	HandlerType: (*visionServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GenerateTags",
			Handler:    generateTagsHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "vision.proto",
}

func generateTagsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(visionServer).generateTags(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: generateTagsMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(visionServer).generateTags(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// VisionGRPCPlugin exposes a VisionTagger over go-plugin's gRPC protocol
type VisionGRPCPlugin struct {
	goplugin.Plugin
	Impl VisionTagger
}

// GRPCServer registers the vision service
func (p *VisionGRPCPlugin) GRPCServer(_ *goplugin.GRPCBroker, s *grpc.Server) error {
	s.RegisterService(&visionServiceDesc, &VisionGRPCServer{Impl: p.Impl})
	return nil
}

// GRPCClient returns the host side tagger
func (p *VisionGRPCPlugin) GRPCClient(_ context.Context, _ *goplugin.GRPCBroker, c *grpc.ClientConn) (interface{}, error) {
	return &VisionGRPCClient{conn: c}, nil
}

// VisionGRPCServer runs inside the plugin process. The caller's deadline
// arrives through the gRPC context.
type VisionGRPCServer struct {
	Impl VisionTagger
}

func (s *VisionGRPCServer) generateTags(ctx context.Context, req *structpb.Struct) (*structpb.ListValue, error) {
	path := req.GetFields()["path"].GetStringValue()
	mediaType := req.GetFields()["media_type"].GetStringValue()
	if path == "" {
		return nil, status.Error(codes.InvalidArgument, "path is required")
	}

	tags, err := s.Impl.GenerateTags(ctx, path, mediaType)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	resp := &structpb.ListValue{Values: make([]*structpb.Value, 0, len(tags))}
	for _, t := range tags {
		resp.Values = append(resp.Values, structpb.NewStringValue(t))
	}
	return resp, nil
}

// VisionGRPCClient is the host side VisionTagger talking to a plugin process
type VisionGRPCClient struct {
	conn grpc.ClientConnInterface
}

// GenerateTags implements VisionTagger. ctx's deadline is forwarded to the plugin.
func (c *VisionGRPCClient) GenerateTags(ctx context.Context, path, mediaType string) ([]string, error) {
	req, err := structpb.NewStruct(map[string]interface{}{
		"path":       path,
		"media_type": mediaType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build vision request: %w", err)
	}

	resp := new(structpb.ListValue)
	if err := c.conn.Invoke(ctx, generateTagsMethod, req, resp); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("vision plugin: %s", status.Convert(err).Message())
	}

	tags := make([]string, 0, len(resp.GetValues()))
	for _, v := range resp.GetValues() {
		if s, ok := v.GetKind().(*structpb.Value_StringValue); ok {
			tags = append(tags, s.StringValue)
		}
	}
	return tags, nil
}

// VisionPluginClient owns a running vision plugin process
type VisionPluginClient struct {
	Tagger VisionTagger
	client *goplugin.Client
}

// Close kills the plugin process
func (c *VisionPluginClient) Close() {
	if c.client != nil {
		c.client.Kill()
	}
}

// LaunchVisionPlugin starts the plugin binary at path and dispenses its tagger
func LaunchVisionPlugin(path string, log hclog.Logger) (*VisionPluginClient, error) {
	log = logger.OrNull(log)

	client := goplugin.NewClient(&goplugin.ClientConfig{
		HandshakeConfig: VisionHandshake,
		Plugins: map[string]goplugin.Plugin{
			VisionPluginName: &VisionGRPCPlugin{},
		},
		Cmd:              exec.Command(path),
		Logger:           log.Named("vision-plugin"),
		AllowedProtocols: []goplugin.Protocol{goplugin.ProtocolGRPC},
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("failed to connect to vision plugin: %w", err)
	}

	raw, err := rpcClient.Dispense(VisionPluginName)
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("failed to dispense vision plugin: %w", err)
	}

	tagger, ok := raw.(VisionTagger)
	if !ok {
		client.Kill()
		return nil, fmt.Errorf("vision plugin does not implement VisionTagger")
	}

	log.Info("vision plugin started", "path", path)
	return &VisionPluginClient{Tagger: tagger, client: client}, nil
}

// ServeVisionPlugin is called from a plugin binary's main to serve impl
func ServeVisionPlugin(impl VisionTagger) {
	goplugin.Serve(&goplugin.ServeConfig{
		HandshakeConfig: VisionHandshake,
		Plugins: map[string]goplugin.Plugin{
			VisionPluginName: &VisionGRPCPlugin{Impl: impl},
		},
		GRPCServer: goplugin.DefaultGRPCServer,
	})
}
