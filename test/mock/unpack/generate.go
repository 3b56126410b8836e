package mock_unpack

//go:generate -command mockgen go run go.uber.org/mock/mockgen -destination=./mocks.go github.com/quay/scancore/unpack
//go:generate mockgen Unpacker,Sink
