package contraction

import (
	"fmt"
	"slices"
)

// IndexClasses lists logical indices by role. Summation entries pair the
// physical positions of the index within A and B.
type IndexClasses struct {
	Free      []int
	Batch     []int
	Summation [][2]int
}

// Classify splits logical indices into free, batch and summation sets.
// A C index carried by both operands is a batch index.
func (p Problem) Classify() (IndexClasses, error) {
	var c IndexClasses
	numC := p.TensorC.NumDims()
	ia, ib := p.Operation.IndexAssignmentsA, p.Operation.IndexAssignmentsB
	for i := range numC + p.TensorA.NumDims() {
		inC := i < numC
		idxA := slices.Index(ia, i)
		idxB := slices.Index(ib, i)
		inA, inB := idxA >= 0, idxB >= 0
		switch {
		case inC && inA && inB:
			c.Batch = append(c.Batch, i)
		case inC && (inA || inB):
			c.Free = append(c.Free, i)
		case inC:
			return c, fmt.Errorf("index %s: %w", IndexChar(i), ErrIndexUnassigned)
		case inA && inB:
			c.Summation = append(c.Summation, [2]int{idxA, idxB})
		case inA || inB:
			return c, fmt.Errorf("index %s: %w", IndexChar(i), ErrSummationAssignmentInvalid)
		}
	}
	return c, nil
}

// Validate checks the structural rules a problem must satisfy before any
// solution can be matched to it.
func (p Problem) Validate() error {
	numA, numB, numC := p.TensorA.NumDims(), p.TensorB.NumDims(), p.TensorC.NumDims()
	ia, ib := p.Operation.IndexAssignmentsA, p.Operation.IndexAssignmentsB
	if numA != numB {
		return fmt.Errorf("A has %d dims, B has %d: %w", numA, numB, ErrOperandNumDimensionsMismatch)
	}
	if len(ia) != numA || len(ib) != numB {
		return fmt.Errorf("assignments cover %d/%d of %d dims: %w", len(ia), len(ib), numA, ErrOperandNumIndicesMismatch)
	}

	classes, err := p.Classify()
	if err != nil {
		return err
	}
	nFree, nBatch, nSum := len(classes.Free), len(classes.Batch), len(classes.Summation)
	if nFree%2 != 0 || nFree < 2 {
		return fmt.Errorf("%d free indices: %w", nFree, ErrNumFreeIndicesInvalid)
	}
	if nFree/2+nBatch+nSum != numA {
		return fmt.Errorf("free/2+batch+summation=%d, operands have %d: %w",
			nFree/2+nBatch+nSum, numA, ErrOperandNumIndicesMismatch)
	}
	if nFree+nBatch != numC {
		return fmt.Errorf("free+batch=%d, C has %d: %w", nFree+nBatch, numC, ErrNumFreeIndicesInvalid)
	}
	if nSum < 1 {
		return ErrNumSummationIndicesInvalid
	}
	op := p.Operation
	if op.NumIndicesFree != nFree || op.NumIndicesBatch != nBatch || op.NumIndicesSum != nSum {
		return fmt.Errorf("operation says %d/%d/%d, assignments give %d/%d/%d: %w",
			op.NumIndicesFree, op.NumIndicesBatch, op.NumIndicesSum, nFree, nBatch, nSum, ErrIndexCountsMismatch)
	}

	maxIndex := nFree + nBatch + nSum - 1
	for i := range numA {
		if ia[i] < 0 || ia[i] > maxIndex {
			return fmt.Errorf("A[%d]=%d: %w", i, ia[i], ErrIndexAssignmentInvalid)
		}
		if ib[i] < 0 || ib[i] > maxIndex {
			return fmt.Errorf("B[%d]=%d: %w", i, ib[i], ErrIndexAssignmentInvalid)
		}
		for j := i + 1; j < numA; j++ {
			if ia[i] == ia[j] {
				return fmt.Errorf("A repeats %s: %w", IndexChar(ia[i]), ErrIndexAssignmentDuplicate)
			}
			if ib[i] == ib[j] {
				return fmt.Errorf("B repeats %s: %w", IndexChar(ib[i]), ErrIndexAssignmentDuplicate)
			}
		}
	}

	if err := checkPairedSizes("A", p.TensorA, ia, p.TensorB, ib, p.TensorC); err != nil {
		return err
	}
	if err := checkPairedSizes("B", p.TensorB, ib, p.TensorA, ia, p.TensorC); err != nil {
		return err
	}

	if len(p.DeviceProfile.Devices) < 1 {
		return ErrDeviceProfileEmpty
	}
	return nil
}

// checkPairedSizes verifies every dimension of t matches the size of the
// same logical index in C or in the other operand.
func checkPairedSizes(name string, t Tensor, assign []int, other Tensor, otherAssign []int, c Tensor) error {
	for i, index := range assign {
		if index < c.NumDims() {
			if c.Dimensions[index].Size != t.Dimensions[i].Size {
				return fmt.Errorf("%s[%d] size %d, C[%d] size %d: %w",
					name, i, t.Dimensions[i].Size, index, c.Dimensions[index].Size, ErrIndexSizeMismatch)
			}
			continue
		}
		j := slices.Index(otherAssign, index)
		if j < 0 {
			return fmt.Errorf("%s[%d]=%s: %w", name, i, IndexChar(index), ErrIndexUnassigned)
		}
		if other.Dimensions[j].Size != t.Dimensions[i].Size {
			return fmt.Errorf("%s[%d] size %d, paired size %d: %w",
				name, i, t.Dimensions[i].Size, other.Dimensions[j].Size, ErrIndexSizeMismatch)
		}
	}
	return nil
}
