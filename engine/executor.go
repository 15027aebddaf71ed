// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.
package engine

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/Fantom-foundation/evmkv/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
)

const (
	// ErrExecutionReverted is returned for transactions whose program failed.
	// Of those, only the nonce increment of the caller is committed.
	ErrExecutionReverted = common.ConstError("execution reverted")
	// ErrUnknownProgram is returned when deploying or calling code without a
	// registered program.
	ErrUnknownProgram = common.ConstError("no program registered for code")
	// ErrWriteProtection is returned for state modifications in view calls.
	ErrWriteProtection = common.ConstError("write protection")
	// ErrContractCollision is returned when deploying to an address already
	// hosting code or having a nonce.
	ErrContractCollision = common.ConstError("contract address collision")
	// ErrNoReadAccess is returned by view calls on databases lacking shared
	// read access.
	ErrNoReadAccess = common.ConstError("database does not support shared reads")
)

// Program is the native implementation of a contract. It is identified by
// the hash of the code deployed for it.
type Program interface {
	Run(host Host, input []byte) ([]byte, error)
}

// ProgramFunc adapts a function to the Program interface.
type ProgramFunc func(host Host, input []byte) ([]byte, error)

func (f ProgramFunc) Run(host Host, input []byte) ([]byte, error) {
	return f(host, input)
}

// Host is the interface between a running program and the state.
type Host interface {
	// Address is the address of the running contract.
	Address() common.Address
	// Caller is the account that sent the transaction.
	Caller() common.Address
	SLoad(index uint256.Int) (uint256.Int, error)
	SStore(index, value uint256.Int) error
	BlockHash(number uint64) (common.Hash, error)
	// SelfDestruct destroys the running contract and moves its balance to
	// the beneficiary.
	SelfDestruct(beneficiary common.Address) error
}

// Executor runs transactions on native programs and commits the resulting
// state changes to a database. Each Deploy or Call is a transaction ending
// with a single commit.
type Executor struct {
	db       StateDatabase
	log      log.Logger
	mu       sync.Mutex
	programs map[common.Hash]Program
}

func NewExecutor(db StateDatabase) *Executor {
	return &Executor{
		db:       db,
		log:      log.New("module", "engine"),
		programs: map[common.Hash]Program{},
	}
}

// Register makes the given program available for contracts deploying the
// given code. It returns the code hash identifying the program.
func (e *Executor) Register(code []byte, program Program) common.Hash {
	hash := common.Keccak256(code)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.programs[hash] = program
	return hash
}

func (e *Executor) getProgram(codeHash common.Hash) (Program, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	res, found := e.programs[codeHash]
	if !found {
		return nil, fmt.Errorf("%w %v", ErrUnknownProgram, codeHash)
	}
	return res, nil
}

// Deploy creates a contract hosting the given code at the address derived
// from the caller and its nonce.
func (e *Executor) Deploy(caller common.Address, code []byte) (common.Address, error) {
	codeHash := common.Keccak256(code)
	if _, err := e.getProgram(codeHash); err != nil {
		return common.Address{}, err
	}
	tx := newTransaction(databaseReader{e.db}, false)
	sender, err := tx.account(caller)
	if err != nil {
		return common.Address{}, err
	}
	address := CreateAddress(caller, sender.Info.Nonce)
	contract, err := tx.account(address)
	if err != nil {
		return common.Address{}, err
	}
	if contract.Info.Nonce != 0 || contract.Info.CodeHash != common.EmptyCodeHash {
		return common.Address{}, fmt.Errorf("%w at %v", ErrContractCollision, address)
	}

	sender.Info.Nonce++
	sender.MarkTouched()
	contract.Info = AccountInfo{
		Balance:  contract.Info.Balance,
		Nonce:    1,
		CodeHash: codeHash,
		Code:     bytes.Clone(code),
	}
	contract.Status |= Created | Touched

	e.log.Debug("Deploying contract", "address", address, "caller", caller, "code", codeHash)
	return address, e.commit(tx)
}

// Call runs the program of the contract at the given address and commits
// its state changes. Calls to accounts without code only increment the
// nonce of the caller.
func (e *Executor) Call(caller, to common.Address, input []byte) ([]byte, error) {
	tx := newTransaction(databaseReader{e.db}, false)
	sender, err := tx.account(caller)
	if err != nil {
		return nil, err
	}
	sender.Info.Nonce++
	sender.MarkTouched()
	senderInfo := sender.Info

	contract, err := tx.account(to)
	if err != nil {
		return nil, err
	}
	contract.MarkTouched()
	if contract.Info.CodeHash == common.EmptyCodeHash {
		return nil, e.commit(tx)
	}

	program, err := e.getProgram(contract.Info.CodeHash)
	if err == nil {
		var output []byte
		output, err = program.Run(&host{tx: tx, address: to, caller: caller}, input)
		if err == nil {
			e.log.Trace("Call succeeded", "caller", caller, "to", to, "output", len(output))
			return output, e.commit(tx)
		}
	}

	e.log.Debug("Call reverted", "caller", caller, "to", to, "err", err)
	revert := newTransaction(databaseReader{e.db}, false)
	revert.accounts[caller] = &Account{
		Info:    senderInfo,
		Storage: map[uint256.Int]StorageSlot{},
		Status:  Touched,
	}
	if commitErr := e.commit(revert); commitErr != nil {
		return nil, commitErr
	}
	return nil, fmt.Errorf("%w: %w", ErrExecutionReverted, err)
}

// View runs the program of the contract at the given address without
// modifying any state. The database needs to offer shared reads.
func (e *Executor) View(caller, to common.Address, input []byte) ([]byte, error) {
	ref, ok := e.db.(DatabaseRef)
	if !ok {
		return nil, ErrNoReadAccess
	}
	tx := newTransaction(refReader{ref}, true)
	contract, err := tx.account(to)
	if err != nil {
		return nil, err
	}
	if contract.Info.CodeHash == common.EmptyCodeHash {
		return nil, nil
	}
	program, err := e.getProgram(contract.Info.CodeHash)
	if err != nil {
		return nil, err
	}
	output, err := program.Run(&host{tx: tx, address: to, caller: caller}, input)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecutionReverted, err)
	}
	return output, nil
}

func (e *Executor) commit(tx *transaction) error {
	e.db.Commit(tx.accounts)
	if checkable, ok := e.db.(Checkable); ok {
		return checkable.Check()
	}
	return nil
}

// stateReader unifies the read paths of Database and DatabaseRef.
type stateReader interface {
	basic(address common.Address) (*AccountInfo, error)
	storage(address common.Address, index uint256.Int) (uint256.Int, error)
	blockHash(number uint64) (common.Hash, error)
}

type databaseReader struct {
	db Database
}

func (r databaseReader) basic(address common.Address) (*AccountInfo, error) {
	return r.db.Basic(address)
}

func (r databaseReader) storage(address common.Address, index uint256.Int) (uint256.Int, error) {
	return r.db.Storage(address, index)
}

func (r databaseReader) blockHash(number uint64) (common.Hash, error) {
	return r.db.BlockHash(number)
}

type refReader struct {
	db DatabaseRef
}

func (r refReader) basic(address common.Address) (*AccountInfo, error) {
	return r.db.BasicRef(address)
}

func (r refReader) storage(address common.Address, index uint256.Int) (uint256.Int, error) {
	return r.db.StorageRef(address, index)
}

func (r refReader) blockHash(number uint64) (common.Hash, error) {
	return r.db.BlockHashRef(number)
}

// transaction is the journal of a single transaction, collecting the
// accounts it accessed together with their original and present values.
type transaction struct {
	reader   stateReader
	readOnly bool
	accounts map[common.Address]*Account
}

func newTransaction(reader stateReader, readOnly bool) *transaction {
	return &transaction{
		reader:   reader,
		readOnly: readOnly,
		accounts: map[common.Address]*Account{},
	}
}

func (t *transaction) account(address common.Address) (*Account, error) {
	if res, found := t.accounts[address]; found {
		return res, nil
	}
	info, err := t.reader.basic(address)
	if err != nil {
		return nil, err
	}
	if info == nil {
		info = new(AccountInfo)
		*info = DefaultAccountInfo()
	}
	res := NewAccount(*info)
	t.accounts[address] = res
	return res, nil
}

func (t *transaction) sload(address common.Address, index uint256.Int) (uint256.Int, error) {
	account, err := t.account(address)
	if err != nil {
		return uint256.Int{}, err
	}
	if slot, found := account.Storage[index]; found {
		return slot.PresentValue, nil
	}
	// Storage of accounts created by this transaction starts empty.
	var value uint256.Int
	if !account.IsCreated() {
		value, err = t.reader.storage(address, index)
		if err != nil {
			return uint256.Int{}, err
		}
	}
	account.Storage[index] = StorageSlot{OriginalValue: value, PresentValue: value}
	return value, nil
}

func (t *transaction) sstore(address common.Address, index, value uint256.Int) error {
	if t.readOnly {
		return ErrWriteProtection
	}
	if _, err := t.sload(address, index); err != nil {
		return err
	}
	account := t.accounts[address]
	slot := account.Storage[index]
	slot.PresentValue = value
	account.Storage[index] = slot
	account.MarkTouched()
	return nil
}

func (t *transaction) selfDestruct(address, beneficiary common.Address) error {
	if t.readOnly {
		return ErrWriteProtection
	}
	account, err := t.account(address)
	if err != nil {
		return err
	}
	target, err := t.account(beneficiary)
	if err != nil {
		return err
	}
	if target != account {
		target.Info.Balance.Add(&target.Info.Balance, &account.Info.Balance)
		target.MarkTouched()
	}
	account.Info.Balance.Clear()
	account.Status |= SelfDestructed | Touched
	return nil
}

type host struct {
	tx      *transaction
	address common.Address
	caller  common.Address
}

func (h *host) Address() common.Address {
	return h.address
}

func (h *host) Caller() common.Address {
	return h.caller
}

func (h *host) SLoad(index uint256.Int) (uint256.Int, error) {
	return h.tx.sload(h.address, index)
}

func (h *host) SStore(index, value uint256.Int) error {
	return h.tx.sstore(h.address, index, value)
}

func (h *host) BlockHash(number uint64) (common.Hash, error) {
	return h.tx.reader.blockHash(number)
}

func (h *host) SelfDestruct(beneficiary common.Address) error {
	return h.tx.selfDestruct(h.address, beneficiary)
}
