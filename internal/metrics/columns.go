package metrics

// Input columns delivered by ingestion. Names follow the Coin Metrics
// community schema where one exists.
const (
	ColPriceUSD       = "PriceUSD"
	ColPriceBTC       = "PriceBTC"
	ColSplyCur        = "SplyCur"
	ColCapRealUSD     = "CapRealUSD"
	ColIssContNtv     = "IssContNtv"
	ColBlkCnt         = "BlkCnt"
	ColHashRate       = "HashRate"
	ColDiffMean       = "DiffMean"
	ColTxCnt          = "TxCnt"
	ColAdrActCnt      = "AdrActCnt"
	ColTxTfrValAdjNtv = "TxTfrValAdjNtv"
	ColTicVol         = "dcr_tic_vol"
	ColTfrVol         = "dcr_tfr_vol"
	ColAnonMixVol     = "dcr_anon_mix_vol"
	ColTicPriceAvg    = "tic_price_avg"

	// Bitcoin reference columns are the Coin Metrics names with this prefix.
	BTCPrefix        = "BTC_"
	ColBTCPriceUSD   = BTCPrefix + "PriceUSD"
	ColBTCCapMrktCur = BTCPrefix + "CapMrktCurUSD"
	ColBTCCapRealUSD = BTCPrefix + "CapRealUSD"

	// Treasury flow from the explorer, in DCR.
	ColTreasuryNet = "treasury_net"
	ColTreasuryIn  = "treasury_received"
	ColTreasuryOut = "treasury_sent"
	ColTreasuryBal = "treasury_balance"
)

// Derived columns. These names are the contract with chart and insight
// definitions and must not change between runs.
const (
	ColBlk             = "blk"
	ColCapMrktCurUSD   = "CapMrktCurUSD"
	ColCapMrktCurBTC   = "CapMrktCurBTC"
	ColPriceRealUSD    = "PriceRealUSD"
	ColPriceRealBTC    = "PriceRealBTC"
	ColCapRealBTC      = "CapRealBTC"
	ColTfrReg          = "dcr_tfr_reg"
	ColTicUSDCost      = "tic_usd_cost"
	ColHashrateTHs     = "pow_hashrate_THs_avg"
	ColTxTfrValMean    = "TxTfrValMeanNtv"
	ColTxTfrValAdjUSD  = "TxTfrValAdjUSD"
	ColDailyIssuedNtv  = "DailyIssuedNtv"
	ColDailyIssuedUSD  = "DailyIssuedUSD"
	ColPoWIncomeUSD    = "PoW_income_usd"
	ColPoSIncomeUSD    = "PoS_income_usd"
	ColFundIncomeUSD   = "Fund_income_usd"
	ColTotalIncomeUSD  = "Total_income_usd"
	ColIssuedCapUSD    = "IssuedCapUSD"
	ColIssuedPriceUSD  = "IssuedPriceUSD"
	ColTicBoundCapUSD  = "TicBoundCapUSD"
	ColMVRV            = "CapMVRVCur"
	ColBTCMVRV         = BTCPrefix + "CapMVRVCur"
	ColRelMVRV         = "DCRBTC_MVRV"
	ColMayer           = "Mayer_Multiple"
	ColContractor      = "Contractor_Multiple"
	ColPuell           = "Puell_Multiple"
	ColCapMrktGrad     = "CapMrktGrad"
	ColCapRealGrad     = "CapRealGrad"
	ColMrktGradient    = "MrktGradient"
	ColUnrealisedPnL   = "UnrealisedPnL_Net"
	ColTicCost142Sum   = "tic_usd_cost_142sum"
	ColTic142d         = "142d_tic"
	ColS2F             = "S2F"
	ColS2FPrefix       = "S2F_CapMr"
	ColS2FCapPredict   = ColS2FPrefix + "_predict"
	ColS2FCapMultiple  = ColS2FPrefix + "_multiple"
	ColS2FCapResidual  = ColS2FPrefix + "_residual"
	ColS2FPricePredict = "S2F_Price_predict"
	ColNVT             = "NVT_28"
	ColRVT             = "RVT_28"
	ColMACD            = "MACD"
	ColMACDSignal      = "MACD_Signal"
	ColMACDHist        = "MACD_Hist"
)
