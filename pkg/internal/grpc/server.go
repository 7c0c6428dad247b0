package grpc

import (
	"net"

	"github.com/spf13/viper"
	"google.golang.org/grpc"
	health "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

type Server struct {
	health.UnimplementedHealthServer

	probes map[string]Probe
	srv    *grpc.Server
}

func NewGrpc(probes map[string]Probe) *Server {
	server := &Server{
		probes: probes,
		srv:    grpc.NewServer(),
	}

	health.RegisterHealthServer(server.srv, server)

	reflection.Register(server.srv)

	return server
}

func (v *Server) Listen() error {
	listener, err := net.Listen("tcp", viper.GetString("grpc_bind"))
	if err != nil {
		return err
	}

	return v.srv.Serve(listener)
}

func (v *Server) Stop() {
	v.srv.GracefulStop()
}
