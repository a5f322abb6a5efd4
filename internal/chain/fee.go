package chain

const (
	MinimalFeeMutez         = 100
	MinimalFeePerGasNanotez = 100
	MinimalFeePerByteMutez  = 1
	GasReserve              = 100
	StorageCostPerByteMutez = 250
	AllocationStorage       = 257
	SignatureSize           = 64

	HardGasLimitPerOperation     = 1040000
	HardGasLimitPerBlock         = 2600000
	HardStorageLimitPerOperation = 60000
)

func ceilDiv(a, b int64) int64 {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// MinimalFee is the baker's default fee floor for an operation of opSize
// bytes with the given gas limit.
func MinimalFee(gasLimit, opSize int64) int64 {
	return MinimalFeeMutez + ceilDiv(gasLimit*MinimalFeePerGasNanotez, 1000) + opSize*MinimalFeePerByteMutez
}

// NewEstimation derives limits and fees from a simulation result.
func NewEstimation(kind string, counter, consumedMilligas, storageDiff int64, allocated bool, opSize int64) Estimation {
	gas := ceilDiv(consumedMilligas, 1000)
	storage := storageDiff
	if allocated {
		storage += AllocationStorage
	}
	gasLimit := gas + GasReserve
	minimal := MinimalFee(gasLimit, opSize)
	return Estimation{
		Kind:                    kind,
		Counter:                 counter,
		SuggestedFee:            minimal + ceilDiv(GasReserve*MinimalFeePerGasNanotez, 1000),
		MinimalFee:              minimal,
		GasEstimation:           gas,
		GasLimit:                gasLimit,
		StorageLimit:            storage,
		StorageAndAllocationFee: storage * StorageCostPerByteMutez,
		ConsumedMilligas:        consumedMilligas,
		OpSize:                  opSize,
	}
}

// simulationGasLimit spreads the block gas budget over n operations.
func simulationGasLimit(n int) int64 {
	if n <= 0 {
		return HardGasLimitPerOperation
	}
	perOp := int64(HardGasLimitPerBlock / n)
	if perOp > HardGasLimitPerOperation {
		return HardGasLimitPerOperation
	}
	return perOp
}
