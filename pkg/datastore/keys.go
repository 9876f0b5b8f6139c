package datastore

import (
	"strconv"

	"golang.org/x/crypto/sha3"
)

// Record keys are keccak-256 hashes of a name tag plus its operands, so
// every persisted entity is addressed deterministically from market, token
// and account identifiers.

func hashKey(parts ...string) []byte {
	h := sha3.NewLegacyKeccak256()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0x1f})
		}
		h.Write([]byte(p))
	}
	return h.Sum(nil)
}

func boolStr(b bool) string {
	return strconv.FormatBool(b)
}

// Market and position records.

func MarketKey(marketToken string) []byte {
	return hashKey("MARKET", marketToken)
}

func MarketListKey() []byte {
	return hashKey("MARKET_LIST")
}

func PositionKey(account, market, collateralToken string, isLong bool) []byte {
	return hashKey("POSITION", account, market, collateralToken, boolStr(isLong))
}

func AccountPositionListKey(account string) []byte {
	return hashKey("ACCOUNT_POSITION_LIST", account)
}

func MarketPositionListKey(market string) []byte {
	return hashKey("MARKET_POSITION_LIST", market)
}

func OrderKey(id string) []byte {
	return hashKey("ORDER", id)
}

func OrderListKey() []byte {
	return hashKey("ORDER_LIST")
}

// Pool balances and open interest.

func PoolAmountKey(market, token string) []byte {
	return hashKey("POOL_AMOUNT", market, token)
}

func PositionImpactPoolAmountKey(market string) []byte {
	return hashKey("POSITION_IMPACT_POOL_AMOUNT", market)
}

func SwapImpactPoolAmountKey(market, token string) []byte {
	return hashKey("SWAP_IMPACT_POOL_AMOUNT", market, token)
}

func OpenInterestKey(market, collateralToken string, isLong bool) []byte {
	return hashKey("OPEN_INTEREST", market, collateralToken, boolStr(isLong))
}

func OpenInterestInTokensKey(market string, isLong bool) []byte {
	return hashKey("OPEN_INTEREST_IN_TOKENS", market, boolStr(isLong))
}

// Virtual inventory records are keyed by virtual id only. They aggregate
// imbalance across every market sharing the id and deliberately live
// outside any single market's records.

func VirtualInventoryForPositionsKey(virtualTokenID string) []byte {
	return hashKey("VIRTUAL_INVENTORY_FOR_POSITIONS", virtualTokenID)
}

func VirtualInventoryForSwapsKey(virtualMarketID string, isLongToken bool) []byte {
	return hashKey("VIRTUAL_INVENTORY_FOR_SWAPS", virtualMarketID, boolStr(isLongToken))
}

// Funding and borrowing accumulators.

func FundingFeeAmountPerSizeKey(market, token string, isLong bool) []byte {
	return hashKey("FUNDING_FEE_AMOUNT_PER_SIZE", market, token, boolStr(isLong))
}

func ClaimableFundingAmountPerSizeKey(market, token string, isLong bool) []byte {
	return hashKey("CLAIMABLE_FUNDING_AMOUNT_PER_SIZE", market, token, boolStr(isLong))
}

func FundingUpdatedAtKey(market string) []byte {
	return hashKey("FUNDING_UPDATED_AT", market)
}

func CumulativeBorrowingFactorKey(market string, isLong bool) []byte {
	return hashKey("CUMULATIVE_BORROWING_FACTOR", market, boolStr(isLong))
}

func BorrowingUpdatedAtKey(market string) []byte {
	return hashKey("BORROWING_UPDATED_AT", market)
}

// Claimable balances. Nothing is paid out until an explicit claim.

func ClaimableFundingAmountKey(market, token, account string) []byte {
	return hashKey("CLAIMABLE_FUNDING_AMOUNT", market, token, account)
}

func AffiliateRewardKey(market, token, affiliate string) []byte {
	return hashKey("AFFILIATE_REWARD", market, token, affiliate)
}

func ClaimableUIFeeAmountKey(market, token, receiver string) []byte {
	return hashKey("CLAIMABLE_UI_FEE_AMOUNT", market, token, receiver)
}

func ClaimableFeeAmountKey(market, token string) []byte {
	return hashKey("CLAIMABLE_FEE_AMOUNT", market, token)
}

// Configuration factors.

func PositionImpactFactorKey(market string, isPositive bool) []byte {
	return hashKey("POSITION_IMPACT_FACTOR", market, boolStr(isPositive))
}

func PositionImpactExponentFactorKey(market string) []byte {
	return hashKey("POSITION_IMPACT_EXPONENT_FACTOR", market)
}

func MaxPositionImpactFactorKey(market string) []byte {
	return hashKey("MAX_POSITION_IMPACT_FACTOR", market)
}

func MaxPositionImpactFactorForLiquidationsKey(market string) []byte {
	return hashKey("MAX_POSITION_IMPACT_FACTOR_FOR_LIQUIDATIONS", market)
}

func SwapImpactFactorKey(market string, isPositive bool) []byte {
	return hashKey("SWAP_IMPACT_FACTOR", market, boolStr(isPositive))
}

func SwapImpactExponentFactorKey(market string) []byte {
	return hashKey("SWAP_IMPACT_EXPONENT_FACTOR", market)
}

func FundingFactorKey(market string) []byte {
	return hashKey("FUNDING_FACTOR", market)
}

func FundingExponentFactorKey(market string) []byte {
	return hashKey("FUNDING_EXPONENT_FACTOR", market)
}

func BorrowingFactorKey(market string, isLong bool) []byte {
	return hashKey("BORROWING_FACTOR", market, boolStr(isLong))
}

func BorrowingExponentFactorKey(market string, isLong bool) []byte {
	return hashKey("BORROWING_EXPONENT_FACTOR", market, boolStr(isLong))
}

func BorrowingFeeReceiverFactorKey() []byte {
	return hashKey("BORROWING_FEE_RECEIVER_FACTOR")
}

func PositionFeeFactorKey(market string, forPositiveImpact bool) []byte {
	return hashKey("POSITION_FEE_FACTOR", market, boolStr(forPositiveImpact))
}

func SwapFeeFactorKey(market string) []byte {
	return hashKey("SWAP_FEE_FACTOR", market)
}

func FeeReceiverFactorKey() []byte {
	return hashKey("FEE_RECEIVER_FACTOR")
}

func MinCollateralUsdKey() []byte {
	return hashKey("MIN_COLLATERAL_USD")
}

func MinPositionSizeUsdKey() []byte {
	return hashKey("MIN_POSITION_SIZE_USD")
}

func MaxUIFeeFactorKey() []byte {
	return hashKey("MAX_UI_FEE_FACTOR")
}

func UIFeeFactorKey(receiver string) []byte {
	return hashKey("UI_FEE_FACTOR", receiver)
}

// Referral configuration.

func ReferralCodeKey(account string) []byte {
	return hashKey("REFERRAL_CODE", account)
}

func AffiliateForCodeKey(code string) []byte {
	return hashKey("AFFILIATE_FOR_CODE", code)
}

func ReferralTotalRebateFactorKey(code string) []byte {
	return hashKey("REFERRAL_TOTAL_REBATE_FACTOR", code)
}

func ReferralDiscountShareKey(code string) []byte {
	return hashKey("REFERRAL_DISCOUNT_SHARE", code)
}
