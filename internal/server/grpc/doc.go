// Package grpcserver hosts relay's gRPC surface: the relay.v1.Events service
// (Publish, Recent) carried with a JSON codec, and the standard
// grpc.health.v1 service tracking runtime health.
//
// Example:
//
//	s := grpcserver.New(rt, logger)
//	go s.ListenAndServe(ctx, ":50051")
//
//	conn, _ := grpc.NewClient("127.0.0.1:50051", grpc.WithTransportCredentials(insecure.NewCredentials()))
//	cli := grpcserver.NewEventsClient(conn)
//	resp, _ := cli.Publish(ctx, &grpcserver.PublishRequest{Route: "fan.speedChanged", Payload: json.RawMessage(`{"speed":5}`)})
package grpcserver
