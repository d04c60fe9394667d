package config

type WorkerKeyStruct struct {
	ExpireLiveQueue string
}

var WorkerKey = &WorkerKeyStruct{
	ExpireLiveQueue: "expire_live_queue",
}
