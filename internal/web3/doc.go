// Package web3 holds chain connectivity for the anchoring daemon: YAML chain
// definitions, a uniform client interface and the EVM implementation used to
// source block heights and to prepare calldata for EVM anchor contracts.
package web3
